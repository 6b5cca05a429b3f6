package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotWithTimes is a slot plus its free grid on one date, for listings.
type SlotWithTimes struct {
	Slot
	AvailableTimes []ClockMinutes
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	cats, err := s.repo.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ListSlots lists active slots, optionally narrowed by category and
// department. When date is set, only slots on that weekday are returned and
// each carries its remaining free times.
func (s *Service) ListSlots(ctx context.Context, categoryID, departmentID *uuid.UUID, date *time.Time) ([]SlotWithTimes, error) {
	f := SlotFilter{
		CategoryID:   categoryID,
		DepartmentID: departmentID,
		ActiveOnly:   true,
	}
	if date != nil {
		wd := date.Weekday()
		f.Weekday = &wd
	}

	slots, err := s.repo.ListSlots(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	out := make([]SlotWithTimes, 0, len(slots))
	for i := range slots {
		item := SlotWithTimes{Slot: slots[i]}
		if date != nil {
			times, err := s.AvailableTimes(ctx, &slots[i], *date)
			if err != nil {
				return nil, err
			}
			item.AvailableTimes = times
		}
		out = append(out, item)
	}
	return out, nil
}

// AvailableTimes expands the slot grid on a date and subtracts times already
// held by an active booking. A date off the slot's weekday yields nothing.
func (s *Service) AvailableTimes(ctx context.Context, slot *Slot, date time.Time) ([]ClockMinutes, error) {
	if date.Weekday() != slot.Weekday {
		return nil, nil
	}

	booked, err := s.repo.ListBookedTimes(ctx, slot.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}

	taken := make(map[ClockMinutes]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}

	var free []ClockMinutes
	for _, t := range slot.Grid() {
		if !taken[t] {
			free = append(free, t)
		}
	}
	return free, nil
}

// Admin operations. Deactivation is preferred to deletion throughout, so
// there is no delete path.

func (s *Service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	if c.Code == "" {
		return nil, Validation("code", "code is required")
	}
	if c.Name == "" {
		return nil, Validation("name", "name is required")
	}
	if c.DefaultDurationMin <= 0 {
		c.DefaultDurationMin = 30
	}
	if c.AdvanceBookingDays <= 0 {
		c.AdvanceBookingDays = s.cfg.AdvanceBookingDays
	}
	return s.repo.CreateCategory(ctx, c)
}

func (s *Service) UpdateCategory(ctx context.Context, c *Category) (*Category, error) {
	existing, err := s.repo.GetCategoryByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if existing.Code != c.Code {
		inUse, err := s.repo.CategoryHasSlots(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check category slots: %w", err)
		}
		if inUse {
			return nil, ErrCategoryCodeInUse
		}
	}
	return s.repo.UpdateCategory(ctx, c)
}

func (s *Service) CreateSlot(ctx context.Context, slot *Slot) (*Slot, error) {
	if err := s.validateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return s.repo.CreateSlot(ctx, slot)
}

// UpdateSlot rejects schedule changes that would orphan active bookings.
// Deactivation alone is always allowed.
func (s *Service) UpdateSlot(ctx context.Context, slot *Slot) (*Slot, error) {
	existing, err := s.repo.GetSlotByID(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validateSlot(ctx, slot); err != nil {
		return nil, err
	}

	if scheduleChanged(existing, slot) {
		inUse, err := s.repo.SlotHasActiveAppointments(ctx, slot.ID)
		if err != nil {
			return nil, fmt.Errorf("check slot appointments: %w", err)
		}
		if inUse {
			return nil, ErrSlotInUse
		}
	}
	return s.repo.UpdateSlot(ctx, slot)
}

func scheduleChanged(old, new *Slot) bool {
	return old.Weekday != new.Weekday ||
		old.StartTime != new.StartTime ||
		old.EndTime != new.EndTime ||
		old.DurationMin != new.DurationMin ||
		old.CategoryID != new.CategoryID
}

func (s *Service) validateSlot(ctx context.Context, slot *Slot) error {
	if slot.Weekday < time.Sunday || slot.Weekday > time.Saturday {
		return Validation("weekday", "weekday must be between 0 and 6")
	}
	if slot.StartTime >= slot.EndTime {
		return Validation("startTime", "start time must be before end time")
	}
	if slot.DurationMin <= 0 {
		return Validation("durationMinutes", "duration must be positive")
	}
	if int(slot.EndTime-slot.StartTime)%slot.DurationMin != 0 {
		return Validation("durationMinutes", "duration must evenly divide the slot window")
	}

	cat, err := s.repo.GetCategoryByID(ctx, slot.CategoryID)
	if err != nil {
		return err
	}
	if cat.RequiresDepartment && slot.DepartmentID == nil {
		return ErrDepartmentRequired
	}
	return nil
}
