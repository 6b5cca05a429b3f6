package appointment

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses are the statuses that occupy a time on the grid.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04"
)

// ClockMinutes is a time of day in minutes since midnight. Times are compared
// to the minute throughout.
type ClockMinutes int

func ParseClock(s string) (ClockMinutes, error) {
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return ClockMinutes(t.Hour()*60 + t.Minute()), nil
}

func (c ClockMinutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// DateOnly truncates t to its civil date in loc, returned at UTC midnight.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

type Category struct {
	ID                 uuid.UUID
	Code               string
	Name               string
	Description        string
	IsActive           bool
	DailyCap           int
	DefaultDurationMin int
	AdvanceBookingDays int
	RequiresApproval   bool
	RequiresDepartment bool
	Priority           int
	DesignationID      *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Slot is a weekly availability template owned by one official for one
// category.
type Slot struct {
	ID            uuid.UUID
	CategoryID    uuid.UUID
	OfficialID    uuid.UUID
	OfficialName  string
	OfficialEmail string
	DepartmentID  *uuid.UUID
	Office        *string
	Weekday       time.Weekday
	StartTime     ClockMinutes
	EndTime       ClockMinutes
	DurationMin   int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Grid expands the slot window [start, end) by its duration.
func (s *Slot) Grid() []ClockMinutes {
	if s.DurationMin <= 0 {
		return nil
	}
	var out []ClockMinutes
	step := ClockMinutes(s.DurationMin)
	for t := s.StartTime; t < s.EndTime; t += step {
		out = append(out, t)
	}
	return out
}

// OnGrid reports whether t is a valid candidate time for the slot.
func (s *Slot) OnGrid(t ClockMinutes) bool {
	if t < s.StartTime || t >= s.EndTime {
		return false
	}
	return int(t-s.StartTime)%s.DurationMin == 0
}

type OTPVerification struct {
	ID         uuid.UUID
	Email      string
	Code       string
	IsVerified bool
	IsActive   bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type Appointment struct {
	ID                uuid.UUID
	CategoryID        uuid.UUID
	SlotID            uuid.UUID
	DepartmentID      *uuid.UUID
	FullName          string
	Email             string
	Phone             string
	Designation       string
	Date              time.Time // civil date, UTC midnight
	TimeOfDay         ClockMinutes
	Purpose           string
	Details           string
	Status            Status
	AdminNotes        string
	ConfirmedBy       *uuid.UUID
	ConfirmedAt       *time.Time
	EmailVerified     bool
	VerificationToken string
	IsArchived        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HistoryEntry is one row of the append-only status ledger.
type HistoryEntry struct {
	ID            int64
	AppointmentID uuid.UUID
	Status        Status
	Notes         string
	ChangedBy     *uuid.UUID
	CreatedAt     time.Time
}

// NewVerificationToken returns a 32-character URL-safe token.
func NewVerificationToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewOTPCode returns a uniformly random 6-decimal-digit code.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
