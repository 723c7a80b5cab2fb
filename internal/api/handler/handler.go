package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/middleware"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const dateLayout = "2006-01-02"

// principal returns the authenticated user, writing a 401 when there is none
func principal(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Unauthorized(w, "authentication required")
		return nil, false
	}
	return user, true
}

// pathID parses a UUID path segment
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		api.BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter
func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Invalid(name, "uuid")
	}
	return &id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, apperr.Invalid(name, "datetime="+dateLayout)
	}
	return &t, nil
}
