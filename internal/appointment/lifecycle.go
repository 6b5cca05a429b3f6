package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/notify"
)

// allowedTransitions is the status machine. Completed, Rejected and
// Cancelled are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func eventForStatus(st Status) (notify.Event, bool) {
	switch st {
	case StatusConfirmed:
		return notify.EventConfirmed, true
	case StatusRejected:
		return notify.EventRejected, true
	case StatusCancelled:
		return notify.EventCancelled, true
	case StatusCompleted:
		return notify.EventCompleted, true
	}
	return "", false
}

// Transition moves an appointment to a new status, appending history and
// notifying participants. A concurrent update is retried once against a
// fresh read; a second miss surfaces as CONFLICT.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, notes string, principal Principal) (*Appointment, error) {
	updated, err := s.transitionOnce(ctx, id, to, notes, principal)
	if errors.Is(err, ErrConflict) {
		updated, err = s.transitionOnce(ctx, id, to, notes, principal)
	}
	if err != nil {
		return nil, err
	}

	s.notifyTransition(ctx, updated)
	return updated, nil
}

func (s *Service) transitionOnce(ctx context.Context, id uuid.UUID, to Status, notes string, principal Principal) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}
	if to == StatusConfirmed && !appt.EmailVerified {
		return nil, ErrInvalidTransition
	}

	upd := StatusUpdate{
		Notes:     notes,
		ChangedBy: &principal.ID,
	}
	if to == StatusConfirmed {
		now := s.now()
		upd.ConfirmedBy = &principal.ID
		upd.ConfirmedAt = &now
	}

	return s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to, upd)
}

func (s *Service) notifyTransition(ctx context.Context, appt *Appointment) {
	ev, ok := eventForStatus(appt.Status)
	if !ok {
		return
	}

	slot, err := s.repo.GetSlotByID(ctx, appt.SlotID)
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("load slot for notification")
		slot = nil
	}
	cat, err := s.repo.GetCategoryByID(ctx, appt.CategoryID)
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("load category for notification")
		cat = nil
	}

	s.notifier.Dispatch(ctx, ev, s.notifyCtx(appt, slot, cat))
}

// ListFor returns appointments visible to the principal's role scope.
func (s *Service) ListFor(ctx context.Context, principal Principal, f ListFilter) ([]Appointment, error) {
	scope := scopeFor(principal)
	appts, err := s.repo.ListAppointments(ctx, f, scope)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func scopeFor(p Principal) ListScope {
	switch p.Role {
	case RolePlatformAdmin, RoleEMISStaff:
		return ListScope{All: true}
	case RoleDepartmentAdmin:
		return ListScope{OfficialID: p.ID, DepartmentID: p.DepartmentID}
	default:
		return ListScope{OfficialID: p.ID, DesignationID: p.DesignationID}
	}
}

// History returns the append-only ledger for one appointment.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// AutoRejectOverdue rejects every pending appointment whose date passed more
// than graceDays ago. Re-running on the same day is a no-op because the
// candidate set is drained. Returns (processed, rejected).
func (s *Service) AutoRejectOverdue(ctx context.Context, graceDays int, dryRun bool) (int, int, error) {
	if graceDays < 0 {
		graceDays = s.cfg.GraceDays
	}

	today := s.today()
	cutoff := today.AddDate(0, 0, -graceDays)

	candidates, err := s.repo.FindOverduePending(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("find overdue pending: %w", err)
	}

	note := fmt.Sprintf("Automatically rejected on %s - no approval within %d days after scheduled date",
		today.Format(DateFormat), graceDays)

	rejected := 0
	for i := range candidates {
		appt := &candidates[i]
		if dryRun {
			log.Info().
				Str("appointment_id", appt.ID.String()).
				Str("date", appt.Date.Format(DateFormat)).
				Msg("would auto-reject")
			continue
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusRejected, StatusUpdate{Notes: note})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				// Someone transitioned it while we swept; skip.
				continue
			}
			log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("auto-reject failed")
			continue
		}
		rejected++

		s.notifyTransition(ctx, updated)
	}

	return len(candidates), rejected, nil
}
