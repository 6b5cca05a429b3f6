package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tcioe/appointment-service/internal/appointment"
)

func listCategoriesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := svc.ListCategories(r.Context(), true)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]CategoryResponse, 0, len(cats))
		for _, c := range cats {
			resp = append(resp, toCategoryResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var categoryID, departmentID *uuid.UUID
		if v := q.Get("category"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "category must be a valid UUID", "category")
				return
			}
			categoryID = &id
		}
		if v := q.Get("department"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "department must be a valid UUID", "department")
				return
			}
			departmentID = &id
		}

		var date *time.Time
		if v := q.Get("date"); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION", "date must be YYYY-MM-DD", "date")
				return
			}
			date = &d
		}

		slots, err := svc.ListSlots(r.Context(), categoryID, departmentID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func requestOTPHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		rec, err := svc.RequestOTP(r.Context(), req.Email)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		minutes := int(rec.ExpiresAt.Sub(rec.CreatedAt).Minutes())
		writeJSON(w, http.StatusOK, RequestOTPResponse{
			Message:          "verification code sent",
			ExpiresInMinutes: minutes,
		})
	}
}

func verifyOTPHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		valid, err := svc.VerifyOTP(r.Context(), req.Email, req.OTPCode)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, VerifyOTPResponse{Valid: valid})
	}
}

func bookHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not parse JSON", "")
			return
		}

		booking, err := parseBookRequest(req)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		appt, err := svc.CreateBooking(r.Context(), booking)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, true))
	}
}

func parseBookRequest(req BookRequest) (appointment.BookingRequest, error) {
	var out appointment.BookingRequest

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return out, appointment.Validation("categoryId", "categoryId must be a valid UUID")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return out, appointment.Validation("slotId", "slotId must be a valid UUID")
	}

	var departmentID *uuid.UUID
	if req.DepartmentID != nil && *req.DepartmentID != "" {
		id, err := uuid.Parse(*req.DepartmentID)
		if err != nil {
			return out, appointment.Validation("departmentId", "departmentId must be a valid UUID")
		}
		departmentID = &id
	}

	date, err := appointment.ParseDate(req.AppointmentDate)
	if err != nil {
		return out, appointment.Validation("appointmentDate", "appointmentDate must be YYYY-MM-DD")
	}
	timeOfDay, err := appointment.ParseClock(req.AppointmentTime)
	if err != nil {
		return out, appointment.Validation("appointmentTime", "appointmentTime must be HH:MM")
	}

	if req.FullName == "" {
		return out, appointment.Validation("fullName", "fullName is required")
	}
	if req.Purpose == "" {
		return out, appointment.Validation("purpose", "purpose is required")
	}

	return appointment.BookingRequest{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Designation:  req.Designation,
		CategoryID:   categoryID,
		SlotID:       slotID,
		DepartmentID: departmentID,
		Date:         date,
		TimeOfDay:    timeOfDay,
		Purpose:      req.Purpose,
		Details:      req.Details,
		OTPCode:      req.OTPCode,
	}, nil
}

func detailsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if len(token) != 32 {
			writeError(w, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "appointment not found", "")
			return
		}

		appt, err := svc.GetByToken(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, false))
	}
}
