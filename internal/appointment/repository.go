package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SlotFilter struct {
	CategoryID   *uuid.UUID
	DepartmentID *uuid.UUID
	Weekday      *time.Weekday
	ActiveOnly   bool
}

type ListFilter struct {
	Status       *Status
	DepartmentID *uuid.UUID
	DateFrom     *time.Time
	DateTo       *time.Time
}

// ListScope narrows a listing to what the caller's role may see.
type ListScope struct {
	All           bool
	OfficialID    uuid.UUID
	DepartmentID  *uuid.UUID // OR-matched against appointment.department_id
	DesignationID *uuid.UUID // AND-matched against category.designation_id
}

// StatusUpdate carries the side fields written together with a transition.
type StatusUpdate struct {
	Notes       string
	ChangedBy   *uuid.UUID
	ConfirmedBy *uuid.UUID
	ConfirmedAt *time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Registry
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	UpdateCategory(ctx context.Context, c *Category) (*Category, error)
	CategoryHasSlots(ctx context.Context, id uuid.UUID) (bool, error)

	ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	CreateSlot(ctx context.Context, s *Slot) (*Slot, error)
	UpdateSlot(ctx context.Context, s *Slot) (*Slot, error)
	SlotHasActiveAppointments(ctx context.Context, id uuid.UUID) (bool, error)
	ListBookedTimes(ctx context.Context, slotID uuid.UUID, date time.Time) ([]ClockMinutes, error)

	// OTP
	DeactivateOTPs(ctx context.Context, email string) (int64, error)
	CreateOTP(ctx context.Context, rec OTPVerification) (*OTPVerification, error)
	GetLatestActiveOTP(ctx context.Context, email string) (*OTPVerification, error)
	PurgeOTPsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Booking. CreateBooking runs in one transaction: consume the OTP,
	// re-check the uniqueness predicate, insert the appointment and its
	// initial history row.
	CreateBooking(ctx context.Context, appt *Appointment, otpID uuid.UUID) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByToken(ctx context.Context, token string) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter, scope ListScope) ([]Appointment, error)

	// Lifecycle. UpdateAppointmentStatus is a compare-and-set on the current
	// status; the history row is appended in the same transaction. A CAS miss
	// returns ErrConflict.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error)
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error)
	FindOverduePending(ctx context.Context, before time.Time) ([]Appointment, error)
}
