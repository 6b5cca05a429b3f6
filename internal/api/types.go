package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/appointment"
)

type CategoryResponse struct {
	ID                     uuid.UUID  `json:"id"`
	Code                   string     `json:"code"`
	Name                   string     `json:"name"`
	Description            string     `json:"description,omitempty"`
	DailyCap               int        `json:"dailyCap,omitempty"`
	DefaultDurationMinutes int        `json:"defaultDurationMinutes"`
	AdvanceBookingDays     int        `json:"advanceBookingDays"`
	RequiresApproval       bool       `json:"requiresApproval"`
	RequiresDepartment     bool       `json:"requiresDepartment"`
	Priority               int        `json:"priority"`
	DesignationID          *uuid.UUID `json:"designationId,omitempty"`
	IsActive               bool       `json:"isActive"`
}

func toCategoryResponse(c appointment.Category) CategoryResponse {
	return CategoryResponse{
		ID:                     c.ID,
		Code:                   c.Code,
		Name:                   c.Name,
		Description:            c.Description,
		DailyCap:               c.DailyCap,
		DefaultDurationMinutes: c.DefaultDurationMin,
		AdvanceBookingDays:     c.AdvanceBookingDays,
		RequiresApproval:       c.RequiresApproval,
		RequiresDepartment:     c.RequiresDepartment,
		Priority:               c.Priority,
		DesignationID:          c.DesignationID,
		IsActive:               c.IsActive,
	}
}

type SlotResponse struct {
	ID              uuid.UUID  `json:"id"`
	CategoryID      uuid.UUID  `json:"categoryId"`
	OfficialName    string     `json:"officialName"`
	DepartmentID    *uuid.UUID `json:"departmentId,omitempty"`
	Office          *string    `json:"office,omitempty"`
	Weekday         int        `json:"weekday"`
	StartTime       string     `json:"startTime"`
	EndTime         string     `json:"endTime"`
	DurationMinutes int        `json:"durationMinutes"`
	IsActive        bool       `json:"isActive"`
	AvailableTimes  []string   `json:"availableTimes,omitempty"`
}

func toSlotResponse(s appointment.SlotWithTimes) SlotResponse {
	resp := SlotResponse{
		ID:              s.ID,
		CategoryID:      s.CategoryID,
		OfficialName:    s.OfficialName,
		DepartmentID:    s.DepartmentID,
		Office:          s.Office,
		Weekday:         int(s.Weekday),
		StartTime:       s.StartTime.String(),
		EndTime:         s.EndTime.String(),
		DurationMinutes: s.DurationMin,
		IsActive:        s.Slot.IsActive,
	}
	for _, t := range s.AvailableTimes {
		resp.AvailableTimes = append(resp.AvailableTimes, t.String())
	}
	return resp
}

type RequestOTPRequest struct {
	Email string `json:"email"`
}

type RequestOTPResponse struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

type VerifyOTPResponse struct {
	Valid bool `json:"valid"`
}

type BookRequest struct {
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Designation     string  `json:"designation"`
	CategoryID      string  `json:"categoryId"`
	SlotID          string  `json:"slotId"`
	DepartmentID    *string `json:"departmentId,omitempty"`
	AppointmentDate string  `json:"appointmentDate"`
	AppointmentTime string  `json:"appointmentTime"`
	Purpose         string  `json:"purpose"`
	Details         string  `json:"details"`
	OTPCode         string  `json:"otpCode"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	CategoryID        uuid.UUID  `json:"categoryId"`
	SlotID            uuid.UUID  `json:"slotId"`
	DepartmentID      *uuid.UUID `json:"departmentId,omitempty"`
	FullName          string     `json:"fullName"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Designation       string     `json:"designation,omitempty"`
	AppointmentDate   string     `json:"appointmentDate"`
	AppointmentTime   string     `json:"appointmentTime"`
	Purpose           string     `json:"purpose"`
	Details           string     `json:"details,omitempty"`
	Status            string     `json:"status"`
	AdminNotes        string     `json:"adminNotes,omitempty"`
	EmailVerified     bool       `json:"emailVerified"`
	VerificationToken string     `json:"verificationToken,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// toAppointmentResponse renders an appointment. The verification token is
// included only for the booking creator's own 201 response.
func toAppointmentResponse(a *appointment.Appointment, includeToken bool) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		CategoryID:      a.CategoryID,
		SlotID:          a.SlotID,
		DepartmentID:    a.DepartmentID,
		FullName:        a.FullName,
		Email:           a.Email,
		Phone:           a.Phone,
		Designation:     a.Designation,
		AppointmentDate: a.Date.Format(appointment.DateFormat),
		AppointmentTime: a.TimeOfDay.String(),
		Purpose:         a.Purpose,
		Details:         a.Details,
		Status:          string(a.Status),
		AdminNotes:      a.AdminNotes,
		EmailVerified:   a.EmailVerified,
		ConfirmedAt:     a.ConfirmedAt,
		CreatedAt:       a.CreatedAt,
	}
	if includeToken {
		resp.VerificationToken = a.VerificationToken
	}
	return resp
}

type TransitionRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

type HistoryEntryResponse struct {
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CategoryRequest struct {
	Code                   string  `json:"code"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	DailyCap               int     `json:"dailyCap"`
	DefaultDurationMinutes int     `json:"defaultDurationMinutes"`
	AdvanceBookingDays     int     `json:"advanceBookingDays"`
	RequiresApproval       bool    `json:"requiresApproval"`
	RequiresDepartment     bool    `json:"requiresDepartment"`
	Priority               int     `json:"priority"`
	DesignationID          *string `json:"designationId,omitempty"`
	IsActive               *bool   `json:"isActive,omitempty"`
}

type SlotRequest struct {
	CategoryID      string  `json:"categoryId"`
	OfficialID      string  `json:"officialId"`
	OfficialName    string  `json:"officialName"`
	OfficialEmail   string  `json:"officialEmail"`
	DepartmentID    *string `json:"departmentId,omitempty"`
	Office          *string `json:"office,omitempty"`
	Weekday         int     `json:"weekday"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	DurationMinutes int     `json:"durationMinutes"`
	IsActive        *bool   `json:"isActive,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
