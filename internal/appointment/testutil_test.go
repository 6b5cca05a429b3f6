package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/config"
	"github.com/tcioe/appointment-service/internal/notify"
	redisclient "github.com/tcioe/appointment-service/internal/redis"
)

var (
	_ Repository         = (*memoryRepo)(nil)
	_ Notifier           = (*recordingNotifier)(nil)
	_ redisclient.Locker = (*memLocker)(nil)
)

// testNow is a Monday. All service tests run against this frozen clock.
var testNow = time.Date(2025, 5, 26, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestService(repo *memoryRepo) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := NewService(repo, &memLocker{held: map[string]bool{}}, notifier, config.Config{
		CampusEmailDomain:  "@tcioe.edu.np",
		OTPTTL:             10 * time.Minute,
		AdvanceBookingDays: 30,
		GraceDays:          2,
		Timezone:           "UTC",
	})
	svc.now = fixedNow
	svc.loc = time.UTC
	return svc, notifier
}

// memLocker is an in-process stand-in for the Redis booking lock.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) WithBookingLock(ctx context.Context, slotID uuid.UUID, date, timeOfDay string, fn func(ctx context.Context) error) error {
	key := slotID.String() + "|" + date + "|" + timeOfDay

	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}

type dispatched struct {
	Event notify.Event
	Ctx   notify.Context
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []dispatched
}

func (r *recordingNotifier) Dispatch(ctx context.Context, ev notify.Event, c notify.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, dispatched{Event: ev, Ctx: c})
}

func (r *recordingNotifier) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, len(r.events))
	for i, d := range r.events {
		out[i] = d.Event
	}
	return out
}

func (r *recordingNotifier) Last() (dispatched, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return dispatched{}, false
	}
	return r.events[len(r.events)-1], true
}

// memoryRepo is an in-memory Repository that enforces the same uniqueness
// predicates as the schema, so booking races can be exercised without a
// database.
type memoryRepo struct {
	mu            sync.Mutex
	now           func() time.Time
	categories    map[uuid.UUID]*Category
	slots         map[uuid.UUID]*Slot
	otps          map[uuid.UUID]*OTPVerification
	appts         map[uuid.UUID]*Appointment
	history       []HistoryEntry
	nextHistoryID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		now:        fixedNow,
		categories: map[uuid.UUID]*Category{},
		slots:      map[uuid.UUID]*Slot{},
		otps:       map[uuid.UUID]*OTPVerification{},
		appts:      map[uuid.UUID]*Appointment{},
	}
}

func (m *memoryRepo) addCategory(c Category) *Category {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DefaultDurationMin == 0 {
		c.DefaultDurationMin = 30
	}
	m.categories[c.ID] = &c
	return &c
}

func (m *memoryRepo) addSlot(s Slot) *Slot {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.slots[s.ID] = &s
	return &s
}

func (m *memoryRepo) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memoryRepo) GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryRepo) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Code == c.Code {
			return nil, Validation("code", "category code already exists")
		}
	}
	cp := *c
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = m.now()
	cp.UpdatedAt = cp.CreatedAt
	m.categories[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryRepo) UpdateCategory(ctx context.Context, c *Category) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.categories[c.ID]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = m.now()
	m.categories[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryRepo) CategoryHasSlots(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if f.ActiveOnly && !s.IsActive {
			continue
		}
		if f.CategoryID != nil && s.CategoryID != *f.CategoryID {
			continue
		}
		if f.DepartmentID != nil && (s.DepartmentID == nil || *s.DepartmentID != *f.DepartmentID) {
			continue
		}
		if f.Weekday != nil && s.Weekday != *f.Weekday {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *memoryRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryRepo) CreateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = m.now()
	cp.UpdatedAt = cp.CreatedAt
	m.slots[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryRepo) UpdateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.slots[s.ID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = m.now()
	m.slots[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryRepo) SlotHasActiveAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.SlotID == id && (a.Status == StatusPending || a.Status == StatusConfirmed) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) ListBookedTimes(ctx context.Context, slotID uuid.UUID, date time.Time) ([]ClockMinutes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ClockMinutes
	for _, a := range m.appts {
		if a.SlotID == slotID && a.Date.Equal(date) && (a.Status == StatusPending || a.Status == StatusConfirmed) {
			out = append(out, a.TimeOfDay)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memoryRepo) DeactivateOTPs(ctx context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.otps {
		if o.Email == email && o.IsActive && !o.IsVerified {
			o.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) CreateOTP(ctx context.Context, rec OTPVerification) (*OTPVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.IsActive = true
	rec.IsVerified = false
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.otps[rec.ID] = &rec
	cp := rec
	return &cp, nil
}

func (m *memoryRepo) GetLatestActiveOTP(ctx context.Context, email string) (*OTPVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *OTPVerification
	for _, o := range m.otps {
		if o.Email != email || !o.IsActive {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memoryRepo) PurgeOTPsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.otps {
		if o.CreatedAt.Before(cutoff) {
			delete(m.otps, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) CreateBooking(ctx context.Context, appt *Appointment, otpID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	otp, ok := m.otps[otpID]
	if !ok || !otp.IsActive || otp.IsVerified || !m.now().Before(otp.ExpiresAt) {
		return nil, ErrOTPUsed
	}

	for _, existing := range m.appts {
		if existing.SlotID == appt.SlotID && existing.Date.Equal(appt.Date) &&
			existing.TimeOfDay == appt.TimeOfDay &&
			(existing.Status == StatusPending || existing.Status == StatusConfirmed) {
			return nil, ErrTimeAlreadyBooked
		}
	}

	otp.IsVerified = true

	cp := *appt
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Status = StatusPending
	cp.EmailVerified = true
	cp.CreatedAt = m.now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp

	m.appendHistory(cp.ID, StatusPending, "Appointment created", nil)

	out := cp
	return &out, nil
}

func (m *memoryRepo) appendHistory(id uuid.UUID, st Status, notes string, changedBy *uuid.UUID) {
	m.nextHistoryID++
	m.history = append(m.history, HistoryEntry{
		ID:            m.nextHistoryID,
		AppointmentID: id,
		Status:        st,
		Notes:         notes,
		ChangedBy:     changedBy,
		CreatedAt:     m.now().Add(time.Duration(m.nextHistoryID) * time.Millisecond),
	})
}

func (m *memoryRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryRepo) GetAppointmentByToken(ctx context.Context, token string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.VerificationToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memoryRepo) ListAppointments(ctx context.Context, f ListFilter, scope ListScope) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.DepartmentID != nil && (a.DepartmentID == nil || *a.DepartmentID != *f.DepartmentID) {
			continue
		}
		if f.DateFrom != nil && a.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && a.Date.After(*f.DateTo) {
			continue
		}
		if !scope.All && !m.inScope(a, scope) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TimeOfDay < out[j].TimeOfDay
	})
	return out, nil
}

func (m *memoryRepo) inScope(a *Appointment, scope ListScope) bool {
	slot := m.slots[a.SlotID]
	ownedByOfficial := slot != nil && slot.OfficialID == scope.OfficialID

	if scope.DepartmentID != nil {
		inDept := a.DepartmentID != nil && *a.DepartmentID == *scope.DepartmentID
		return ownedByOfficial || inDept
	}
	if scope.DesignationID != nil {
		cat := m.categories[a.CategoryID]
		matches := cat != nil && cat.DesignationID != nil && *cat.DesignationID == *scope.DesignationID
		return ownedByOfficial && matches
	}
	return ownedByOfficial
}

func (m *memoryRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrConflict
	}
	a.Status = to
	if upd.Notes != "" {
		a.AdminNotes = upd.Notes
	}
	if upd.ConfirmedBy != nil {
		a.ConfirmedBy = upd.ConfirmedBy
	}
	if upd.ConfirmedAt != nil {
		a.ConfirmedAt = upd.ConfirmedAt
	}
	a.UpdatedAt = m.now()

	m.appendHistory(id, to, upd.Notes, upd.ChangedBy)

	cp := *a
	return &cp, nil
}

func (m *memoryRepo) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, h := range m.history {
		if h.AppointmentID == appointmentID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) FindOverduePending(ctx context.Context, before time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.Status == StatusPending && a.Date.Before(before) && !a.IsArchived {
			out = append(out, *a)
		}
	}
	return out, nil
}
