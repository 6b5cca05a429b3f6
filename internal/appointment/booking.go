package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/notify"
	redisclient "github.com/tcioe/appointment-service/internal/redis"
)

// BookingRequest is a client booking intent, already parsed by the API
// layer.
type BookingRequest struct {
	FullName     string
	Email        string
	Phone        string
	Designation  string
	CategoryID   uuid.UUID
	SlotID       uuid.UUID
	DepartmentID *uuid.UUID
	Date         time.Time
	TimeOfDay    ClockMinutes
	Purpose      string
	Details      string
	OTPCode      string
}

// CreateBooking validates the request, serializes contenders for the same
// (slot, date, time) behind a Redis lock, and persists the appointment,
// the OTP consumption and the initial history row in one transaction. The
// partial unique index on active bookings backstops any remaining race.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if !strings.HasSuffix(email, s.cfg.CampusEmailDomain) {
		return nil, ErrBadEmailDomain
	}

	today := s.today()
	if req.Date.Before(today) {
		return nil, ErrDatePast
	}

	slot, err := s.repo.GetSlotByID(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if !slot.IsActive {
		return nil, ErrSlotNotFound
	}
	if slot.CategoryID != req.CategoryID {
		return nil, ErrSlotCategoryMismatch
	}

	cat, err := s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	window := cat.AdvanceBookingDays
	if window <= 0 {
		window = s.cfg.AdvanceBookingDays
	}
	if req.Date.After(today.AddDate(0, 0, window)) {
		return nil, ErrDateTooFar
	}

	if cat.RequiresDepartment {
		if req.DepartmentID == nil {
			return nil, ErrDepartmentRequired
		}
		if slot.DepartmentID == nil || *req.DepartmentID != *slot.DepartmentID {
			return nil, ErrDepartmentRequired
		}
	}

	if req.Date.Weekday() != slot.Weekday {
		return nil, ErrWeekdayMismatch
	}
	if !slot.OnGrid(req.TimeOfDay) {
		return nil, ErrTimeOutOfRange
	}

	// Classify the OTP before taking the lock so a bad code fails fast; the
	// actual consumption is a test-and-set inside the booking transaction.
	otp, err := s.checkOTP(ctx, email, req.OTPCode)
	if err != nil {
		return nil, err
	}

	token, err := NewVerificationToken()
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		CategoryID:        req.CategoryID,
		SlotID:            req.SlotID,
		DepartmentID:      req.DepartmentID,
		FullName:          strings.TrimSpace(req.FullName),
		Email:             email,
		Phone:             strings.TrimSpace(req.Phone),
		Designation:       strings.TrimSpace(req.Designation),
		Date:              req.Date,
		TimeOfDay:         req.TimeOfDay,
		Purpose:           req.Purpose,
		Details:           req.Details,
		VerificationToken: token,
	}

	var created *Appointment

	lockErr := s.locker.WithBookingLock(ctx, slot.ID, req.Date.Format(DateFormat), req.TimeOfDay.String(), func(lockCtx context.Context) error {
		booked, err := s.repo.ListBookedTimes(lockCtx, slot.ID, req.Date)
		if err != nil {
			return fmt.Errorf("check booked times: %w", err)
		}
		for _, t := range booked {
			if t == req.TimeOfDay {
				return ErrTimeAlreadyBooked
			}
		}

		created, err = s.createWithTokenRetry(lockCtx, appt, otp.ID)
		return err
	})
	if lockErr != nil {
		if errors.Is(lockErr, redisclient.ErrLockNotAcquired) {
			return nil, ErrTimeAlreadyBooked
		}
		return nil, lockErr
	}

	s.notifier.Dispatch(ctx, notify.EventAppointmentCreated, s.notifyCtx(created, slot, cat))

	return created, nil
}

// createWithTokenRetry retries once if the fresh verification token collides,
// which the unique constraint reports the same way as a booking conflict
// would on a different column.
func (s *Service) createWithTokenRetry(ctx context.Context, appt *Appointment, otpID uuid.UUID) (*Appointment, error) {
	created, err := s.repo.CreateBooking(ctx, appt, otpID)
	if err == nil || !errors.Is(err, ErrTimeAlreadyBooked) {
		return created, err
	}

	// Distinguish a real time conflict from a token collision.
	if existing, lookupErr := s.repo.GetAppointmentByToken(ctx, appt.VerificationToken); lookupErr == nil && existing != nil {
		token, tokenErr := NewVerificationToken()
		if tokenErr != nil {
			return nil, tokenErr
		}
		appt.VerificationToken = token
		return s.repo.CreateBooking(ctx, appt, otpID)
	}

	return nil, err
}

// GetByToken resolves the public, login-free appointment view.
func (s *Service) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	return s.repo.GetAppointmentByToken(ctx, token)
}

// GetSlot exposes slot lookup to the API layer.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, id)
}

// GetCategory exposes category lookup to the API layer.
func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repo.GetCategoryByID(ctx, id)
}
