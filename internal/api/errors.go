package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
)

// StatusFor maps an error kind to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrExpired):
		return http.StatusGone
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrDuplicateConflict),
		errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes err as a failure envelope. Unclassified errors are logged and
// reported without their message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := Envelope{Success: false, Message: err.Error()}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body.Message = "validation failed"
		body.Fields = verr.Fields
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		body.Message = "internal server error"
	}

	writeJSON(w, status, body)
}

func BadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: message})
}

func Unauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, Envelope{Success: false, Message: message})
}

// Fail writes a failure envelope with an explicit status
func Fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}
