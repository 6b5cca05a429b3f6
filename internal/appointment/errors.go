package appointment

// Error carries one of the stable error codes surfaced to clients.
type Error struct {
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrBadEmailDomain = &Error{Code: "BAD_EMAIL_DOMAIN", Message: "email is not a campus address", Field: "email"}

	ErrOTPInvalid = &Error{Code: "OTP_INVALID", Message: "otp code is not valid", Field: "otpCode"}
	ErrOTPExpired = &Error{Code: "OTP_EXPIRED", Message: "otp code has expired", Field: "otpCode"}
	ErrOTPUsed    = &Error{Code: "OTP_USED", Message: "otp code has already been used", Field: "otpCode"}

	ErrDatePast   = &Error{Code: "DATE_PAST", Message: "appointment date is in the past", Field: "appointmentDate"}
	ErrDateTooFar = &Error{Code: "DATE_TOO_FAR", Message: "appointment date is beyond the advance booking window", Field: "appointmentDate"}

	ErrWeekdayMismatch      = &Error{Code: "WEEKDAY_MISMATCH", Message: "appointment date does not fall on the slot weekday", Field: "appointmentDate"}
	ErrTimeOutOfRange       = &Error{Code: "TIME_OUT_OF_RANGE", Message: "appointment time is outside the slot or off its grid", Field: "appointmentTime"}
	ErrDepartmentRequired   = &Error{Code: "DEPARTMENT_REQUIRED", Message: "department is required for this category", Field: "departmentId"}
	ErrSlotCategoryMismatch = &Error{Code: "SLOT_CATEGORY_MISMATCH", Message: "slot does not belong to the requested category", Field: "slotId"}

	ErrTimeAlreadyBooked   = &Error{Code: "TIME_ALREADY_BOOKED", Message: "the requested time has already been booked"}
	ErrInvalidTransition   = &Error{Code: "INVALID_TRANSITION", Message: "status transition is not allowed"}
	ErrConflict            = &Error{Code: "CONFLICT", Message: "appointment was updated concurrently, retry"}
	ErrSlotInUse           = &Error{Code: "SLOT_IN_USE", Message: "slot has active appointments and cannot be rescheduled"}
	ErrCategoryCodeInUse   = &Error{Code: "VALIDATION", Message: "category code is immutable once slots reference it", Field: "code"}
	ErrCategoryNotFound    = &Error{Code: "CATEGORY_NOT_FOUND", Message: "category not found"}
	ErrSlotNotFound        = &Error{Code: "SLOT_NOT_FOUND", Message: "slot not found"}
	ErrAppointmentNotFound = &Error{Code: "APPOINTMENT_NOT_FOUND", Message: "appointment not found"}
)

// Validation builds an ad-hoc 400-class error for admin input checks.
func Validation(field, message string) *Error {
	return &Error{Code: "VALIDATION", Message: message, Field: field}
}
