package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/config"
	"github.com/tcioe/appointment-service/internal/notify"
	redisclient "github.com/tcioe/appointment-service/internal/redis"
)

// Notifier is satisfied by notify.Dispatcher. It never reports failure:
// transport errors are logged downstream and must not reach business flows.
type Notifier interface {
	Dispatch(ctx context.Context, ev notify.Event, c notify.Context)
}

type Role string

const (
	RolePlatformAdmin   Role = "platform_admin"
	RoleEMISStaff       Role = "emis_staff"
	RoleDepartmentAdmin Role = "department_admin"
	RoleOfficial        Role = "official"
)

// Principal is the authenticated caller as asserted by the upstream gateway.
type Principal struct {
	ID            uuid.UUID
	Role          Role
	DepartmentID  *uuid.UUID
	DesignationID *uuid.UUID
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config) *Service {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Str("timezone", cfg.Timezone).Err(err).Msg("falling back to UTC")
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		loc:      loc,
		now:      time.Now,
	}
}

// today is the campus civil date.
func (s *Service) today() time.Time {
	return DateOnly(s.now(), s.loc)
}

func (s *Service) notifyCtx(appt *Appointment, slot *Slot, cat *Category) notify.Context {
	c := notify.Context{
		ApplicantName:  appt.FullName,
		ApplicantEmail: appt.Email,
		Date:           appt.Date.Format(DateFormat),
		Time:           appt.TimeOfDay.String(),
		Purpose:        appt.Purpose,
		Notes:          appt.AdminNotes,
	}
	if slot != nil {
		c.OfficialName = slot.OfficialName
		c.OfficialEmail = slot.OfficialEmail
	}
	if cat != nil {
		c.Category = cat.Name
	}
	return c
}
