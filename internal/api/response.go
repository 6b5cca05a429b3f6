package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tcioe/appointment-service/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Field: field})
}

// writeDomainError maps a service error onto the stable error taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	var domErr *appointment.Error
	if errors.As(err, &domErr) {
		writeError(w, statusForCode(domErr.Code), domErr.Code, domErr.Message, domErr.Field)
		return
	}

	log.Error().Err(err).Msg("unhandled error")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", "")
}

func statusForCode(code string) int {
	switch code {
	case "TIME_ALREADY_BOOKED", "INVALID_TRANSITION", "CONFLICT", "SLOT_IN_USE":
		return http.StatusConflict
	case "CATEGORY_NOT_FOUND", "SLOT_NOT_FOUND", "APPOINTMENT_NOT_FOUND":
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
