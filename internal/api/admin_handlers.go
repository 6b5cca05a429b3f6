package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/appointment"
)

func adminListHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.ListFilter

		if v := q.Get("status"); v != "" {
			st, ok := appointment.ParseStatus(v)
			if !ok {
				writeError(w, http.StatusBadRequest, "VALIDATION", "unknown status", "status")
				return
			}
			f.Status = &st
		}
		if v := q.Get("department"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "department must be a valid UUID", "department")
				return
			}
			f.DepartmentID = &id
		}
		if v := q.Get("dateFrom"); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "dateFrom must be YYYY-MM-DD", "dateFrom")
				return
			}
			f.DateFrom = &d
		}
		if v := q.Get("dateTo"); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "dateTo must be YYYY-MM-DD", "dateTo")
				return
			}
			f.DateTo = &d
		}

		appts, err := svc.ListFor(r.Context(), principalFrom(r.Context()), f)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i], false))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func adminTransitionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", "id")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		st, ok := appointment.ParseStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION", "unknown status", "status")
			return
		}

		appt, err := svc.Transition(r.Context(), id, st, req.AdminNotes, principalFrom(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, false))
	}
}

func adminHistoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", "id")
			return
		}

		entries, err := svc.History(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]HistoryEntryResponse, 0, len(entries))
		for _, h := range entries {
			resp = append(resp, HistoryEntryResponse{
				Status:    string(h.Status),
				Notes:     h.Notes,
				ChangedBy: h.ChangedBy,
				CreatedAt: h.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Category and slot administration.

func adminCreateCategoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		cat, err := categoryFromRequest(req, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		created, err := svc.CreateCategory(r.Context(), cat)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCategoryResponse(*created))
	}
}

func adminUpdateCategoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", "id")
			return
		}

		var req CategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		cat, err := categoryFromRequest(req, &id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		updated, err := svc.UpdateCategory(r.Context(), cat)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCategoryResponse(*updated))
	}
}

func categoryFromRequest(req CategoryRequest, id *uuid.UUID) (*appointment.Category, error) {
	cat := &appointment.Category{
		Code:               req.Code,
		Name:               req.Name,
		Description:        req.Description,
		DailyCap:           req.DailyCap,
		DefaultDurationMin: req.DefaultDurationMinutes,
		AdvanceBookingDays: req.AdvanceBookingDays,
		RequiresApproval:   req.RequiresApproval,
		RequiresDepartment: req.RequiresDepartment,
		Priority:           req.Priority,
		IsActive:           true,
	}
	if id != nil {
		cat.ID = *id
	}
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}
	if req.DesignationID != nil && *req.DesignationID != "" {
		desig, err := uuid.Parse(*req.DesignationID)
		if err != nil {
			return nil, appointment.Validation("designationId", "designationId must be a valid UUID")
		}
		cat.DesignationID = &desig
	}
	return cat, nil
}

func adminCreateSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		slot, err := slotFromRequest(req, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		created, err := svc.CreateSlot(r.Context(), slot)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponse(appointment.SlotWithTimes{Slot: *created}))
	}
}

func adminUpdateSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", "id")
			return
		}

		var req SlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		slot, err := slotFromRequest(req, &id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		updated, err := svc.UpdateSlot(r.Context(), slot)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(appointment.SlotWithTimes{Slot: *updated}))
	}
}

func slotFromRequest(req SlotRequest, id *uuid.UUID) (*appointment.Slot, error) {
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, appointment.Validation("categoryId", "categoryId must be a valid UUID")
	}
	officialID, err := uuid.Parse(req.OfficialID)
	if err != nil {
		return nil, appointment.Validation("officialId", "officialId must be a valid UUID")
	}
	start, err := appointment.ParseClock(req.StartTime)
	if err != nil {
		return nil, appointment.Validation("startTime", "startTime must be HH:MM")
	}
	end, err := appointment.ParseClock(req.EndTime)
	if err != nil {
		return nil, appointment.Validation("endTime", "endTime must be HH:MM")
	}

	slot := &appointment.Slot{
		CategoryID:    categoryID,
		OfficialID:    officialID,
		OfficialName:  req.OfficialName,
		OfficialEmail: req.OfficialEmail,
		Office:        req.Office,
		Weekday:       time.Weekday(req.Weekday),
		StartTime:     start,
		EndTime:       end,
		DurationMin:   req.DurationMinutes,
		IsActive:      true,
	}
	if id != nil {
		slot.ID = *id
	}
	if req.IsActive != nil {
		slot.IsActive = *req.IsActive
	}
	if req.DepartmentID != nil && *req.DepartmentID != "" {
		dept, err := uuid.Parse(*req.DepartmentID)
		if err != nil {
			return nil, appointment.Validation("departmentId", "departmentId must be a valid UUID")
		}
		slot.DepartmentID = &dept
	}
	return slot, nil
}
