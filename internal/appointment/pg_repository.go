package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func pgTime(c ClockMinutes) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * 60 * 1_000_000, Valid: true}
}

func clockFromPg(t pgtype.Time) ClockMinutes {
	return ClockMinutes(t.Microseconds / 60_000_000)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const categoryColumns = `id, code, name, description, is_active, daily_cap,
	default_duration_min, advance_booking_days, requires_approval,
	requires_department, priority, designation_id, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.Description,
		&c.IsActive,
		&c.DailyCap,
		&c.DefaultDurationMin,
		&c.AdvanceBookingDays,
		&c.RequiresApproval,
		&c.RequiresDepartment,
		&c.Priority,
		&c.DesignationID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

const slotColumns = `id, category_id, official_id, official_name, official_email,
	department_id, office, weekday, start_time, end_time, duration_min,
	is_active, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var weekday int16
	var start, end pgtype.Time

	err := row.Scan(
		&s.ID,
		&s.CategoryID,
		&s.OfficialID,
		&s.OfficialName,
		&s.OfficialEmail,
		&s.DepartmentID,
		&s.Office,
		&weekday,
		&start,
		&end,
		&s.DurationMin,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Weekday = time.Weekday(weekday)
	s.StartTime = clockFromPg(start)
	s.EndTime = clockFromPg(end)
	return &s, nil
}

const appointmentColumns = `id, category_id, slot_id, department_id, full_name,
	email, phone, designation, appointment_date, appointment_time, purpose,
	details, status, admin_notes, confirmed_by, confirmed_at, email_verified,
	verification_token, is_archived, created_at, updated_at`

const appointmentColumnsPrefixed = `a.id, a.category_id, a.slot_id,
	a.department_id, a.full_name, a.email, a.phone, a.designation,
	a.appointment_date, a.appointment_time, a.purpose, a.details, a.status,
	a.admin_notes, a.confirmed_by, a.confirmed_at, a.email_verified,
	a.verification_token, a.is_archived, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var timeOfDay pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.CategoryID,
		&a.SlotID,
		&a.DepartmentID,
		&a.FullName,
		&a.Email,
		&a.Phone,
		&a.Designation,
		&a.Date,
		&timeOfDay,
		&a.Purpose,
		&a.Details,
		&a.Status,
		&a.AdminNotes,
		&a.ConfirmedBy,
		&a.ConfirmedAt,
		&a.EmailVerified,
		&a.VerificationToken,
		&a.IsArchived,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.TimeOfDay = clockFromPg(timeOfDay)
	return &a, nil
}

func scanOTP(row pgx.Row) (*OTPVerification, error) {
	var o OTPVerification
	err := row.Scan(
		&o.ID,
		&o.Email,
		&o.Code,
		&o.IsVerified,
		&o.IsActive,
		&o.CreatedAt,
		&o.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Registry

func (r *PgRepository) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM appointment_categories`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY priority ASC, name ASC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM appointment_categories WHERE id = $1`, id)
	return scanCategory(row)
}

func (r *PgRepository) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_categories
			(id, code, name, description, is_active, daily_cap, default_duration_min,
			 advance_booking_days, requires_approval, requires_department, priority,
			 designation_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+categoryColumns,
		c.ID, c.Code, c.Name, c.Description, c.IsActive, c.DailyCap,
		c.DefaultDurationMin, c.AdvanceBookingDays, c.RequiresApproval,
		c.RequiresDepartment, c.Priority, c.DesignationID)

	out, err := scanCategory(row)
	if err != nil && isUniqueViolation(err) {
		return nil, Validation("code", "category code already exists")
	}
	return out, err
}

func (r *PgRepository) UpdateCategory(ctx context.Context, c *Category) (*Category, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_categories
		SET code = $2, name = $3, description = $4, is_active = $5, daily_cap = $6,
		    default_duration_min = $7, advance_booking_days = $8,
		    requires_approval = $9, requires_department = $10, priority = $11,
		    designation_id = $12, updated_at = now()
		WHERE id = $1
		RETURNING `+categoryColumns,
		c.ID, c.Code, c.Name, c.Description, c.IsActive, c.DailyCap,
		c.DefaultDurationMin, c.AdvanceBookingDays, c.RequiresApproval,
		c.RequiresDepartment, c.Priority, c.DesignationID)

	out, err := scanCategory(row)
	if err != nil && isUniqueViolation(err) {
		return nil, Validation("code", "category code already exists")
	}
	return out, err
}

func (r *PgRepository) CategoryHasSlots(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment_slots WHERE category_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM appointment_slots`
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	if f.DepartmentID != nil {
		conds = append(conds, "department_id = "+arg(*f.DepartmentID))
	}
	if f.Weekday != nil {
		conds = append(conds, "weekday = "+arg(int16(*f.Weekday)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY weekday ASC, start_time ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM appointment_slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_slots
			(id, category_id, official_id, official_name, official_email,
			 department_id, office, weekday, start_time, end_time, duration_min,
			 is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+slotColumns,
		s.ID, s.CategoryID, s.OfficialID, s.OfficialName, s.OfficialEmail,
		s.DepartmentID, s.Office, int16(s.Weekday), pgTime(s.StartTime),
		pgTime(s.EndTime), s.DurationMin, s.IsActive)

	out, err := scanSlot(row)
	if err != nil && isUniqueViolation(err) {
		return nil, Validation("startTime", "an identical slot already exists")
	}
	return out, err
}

func (r *PgRepository) UpdateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_slots
		SET category_id = $2, official_id = $3, official_name = $4,
		    official_email = $5, department_id = $6, office = $7, weekday = $8,
		    start_time = $9, end_time = $10, duration_min = $11, is_active = $12,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns,
		s.ID, s.CategoryID, s.OfficialID, s.OfficialName, s.OfficialEmail,
		s.DepartmentID, s.Office, int16(s.Weekday), pgTime(s.StartTime),
		pgTime(s.EndTime), s.DurationMin, s.IsActive)

	out, err := scanSlot(row)
	if err != nil && isUniqueViolation(err) {
		return nil, Validation("startTime", "an identical slot already exists")
	}
	return out, err
}

func (r *PgRepository) SlotHasActiveAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND status IN ('pending', 'confirmed')
		)`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ListBookedTimes(ctx context.Context, slotID uuid.UUID, date time.Time) ([]ClockMinutes, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE slot_id = $1
		  AND appointment_date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY appointment_time ASC
	`, slotID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClockMinutes
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, clockFromPg(t))
	}
	return result, rows.Err()
}

// OTP

func (r *PgRepository) DeactivateOTPs(ctx context.Context, email string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE otp_verifications
		SET is_active = FALSE
		WHERE email = $1 AND is_active AND NOT is_verified
	`, email)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) CreateOTP(ctx context.Context, rec OTPVerification) (*OTPVerification, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO otp_verifications (id, email, code, is_verified, is_active, created_at, expires_at)
		VALUES ($1, $2, $3, FALSE, TRUE, now(), $4)
		RETURNING id, email, code, is_verified, is_active, created_at, expires_at
	`, rec.ID, rec.Email, rec.Code, rec.ExpiresAt)
	return scanOTP(row)
}

func (r *PgRepository) GetLatestActiveOTP(ctx context.Context, email string) (*OTPVerification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, code, is_verified, is_active, created_at, expires_at
		FROM otp_verifications
		WHERE email = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`, email)
	return scanOTP(row)
}

func (r *PgRepository) PurgeOTPsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_verifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Booking

func (r *PgRepository) CreateBooking(ctx context.Context, appt *Appointment, otpID uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Consume the OTP first: test-and-set so a second booking with the same
	// code loses.
	tag, err := tx.Exec(ctx, `
		UPDATE otp_verifications
		SET is_verified = TRUE
		WHERE id = $1 AND is_active AND NOT is_verified AND expires_at > now()
	`, otpID)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOTPUsed
	}

	// Re-check under the booking lock; the partial unique index below is the
	// backstop if two transactions still race.
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND appointment_date = $2 AND appointment_time = $3
			  AND status IN ('pending', 'confirmed')
		)`, appt.SlotID, appt.Date, pgTime(appt.TimeOfDay)).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check active booking: %w", err)
	}
	if taken {
		return nil, ErrTimeAlreadyBooked
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, category_id, slot_id, department_id, full_name, email, phone,
			 designation, appointment_date, appointment_time, purpose, details,
			 status, admin_notes, email_verified, verification_token, is_archived,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        'pending', '', TRUE, $13, FALSE, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.CategoryID, appt.SlotID, appt.DepartmentID, appt.FullName,
		appt.Email, appt.Phone, appt.Designation, appt.Date, pgTime(appt.TimeOfDay),
		appt.Purpose, appt.Details, appt.VerificationToken)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTimeAlreadyBooked
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, status, notes, changed_by, created_at)
		VALUES ($1, 'pending', 'Appointment created', NULL, now())
	`, created.ID)
	if err != nil {
		return nil, fmt.Errorf("insert initial history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTimeAlreadyBooked
		}
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByToken(ctx context.Context, token string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE verification_token = $1`, token)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter, scope ListScope) ([]Appointment, error) {
	q := `SELECT ` + appointmentColumnsPrefixed + `
		FROM appointments a
		JOIN appointment_slots s ON s.id = a.slot_id
		JOIN appointment_categories c ON c.id = a.category_id`

	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Status != nil {
		conds = append(conds, "a.status = "+arg(string(*f.Status)))
	}
	if f.DepartmentID != nil {
		conds = append(conds, "a.department_id = "+arg(*f.DepartmentID))
	}
	if f.DateFrom != nil {
		conds = append(conds, "a.appointment_date >= "+arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		conds = append(conds, "a.appointment_date <= "+arg(*f.DateTo))
	}

	if !scope.All {
		if scope.DepartmentID != nil {
			conds = append(conds, "(s.official_id = "+arg(scope.OfficialID)+" OR a.department_id = "+arg(*scope.DepartmentID)+")")
		} else if scope.DesignationID != nil {
			conds = append(conds, "s.official_id = "+arg(scope.OfficialID))
			conds = append(conds, "c.designation_id = "+arg(*scope.DesignationID))
		} else {
			conds = append(conds, "s.official_id = "+arg(scope.OfficialID))
		}
	}

	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY a.appointment_date ASC, a.appointment_time ASC, a.created_at ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    admin_notes = CASE WHEN $4 <> '' THEN $4 ELSE admin_notes END,
		    confirmed_by = COALESCE($5, confirmed_by),
		    confirmed_at = COALESCE($6, confirmed_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from, upd.Notes, upd.ConfirmedBy, upd.ConfirmedAt)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row missing or CAS miss: let the service decide which.
			return nil, ErrConflict
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, status, notes, changed_by, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, id, to, upd.Notes, upd.ChangedBy)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, status, notes, changed_by, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.AppointmentID, &h.Status, &h.Notes, &h.ChangedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindOverduePending(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND appointment_date < $1
		  AND NOT is_archived
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
