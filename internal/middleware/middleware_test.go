package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/metrics"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type stubResolver map[string]*models.User

func (s stubResolver) GetUserFromToken(_ context.Context, token string) (*models.User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, apperr.New(apperr.ErrUnauthenticated, "invalid or expired token")
}

func TestAuth(t *testing.T) {
	active := &models.User{ID: uuid.New(), Name: "Kim", Status: models.UserStatusActive}
	pending := &models.User{ID: uuid.New(), Name: "Pat", Status: models.UserStatusPending}
	inactive := &models.User{ID: uuid.New(), Name: "Ira", Status: models.UserStatusInactive}
	resolver := stubResolver{"good": active, "new": pending, "off": inactive}

	var seen *models.User
	h := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
		user   *models.User
	}{
		{"missing header", "", http.StatusUnauthorized, nil},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, nil},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, nil},
		{"inactive user", "Bearer off", http.StatusUnauthorized, nil},
		{"active user", "Bearer good", http.StatusNoContent, active},
		{"pending user", "bearer new", http.StatusNoContent, pending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.user, seen)
		})
	}
}

func TestGetUserWithoutAuth(t *testing.T) {
	_, ok := GetUser(context.Background())
	assert.False(t, ok)
}

func TestLoggerRecordsRoute(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Logger(m)(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/reports/{id}", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(body.Body.String(), "shiftreport_http_request_duration_seconds"))
}
