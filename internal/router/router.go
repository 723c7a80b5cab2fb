package router

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/api/handler"
	"github.com/pizza-nz/shiftreport-service/internal/metrics"
	"github.com/pizza-nz/shiftreport-service/internal/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Users       *handler.UserHandler
	Locations   *handler.LocationHandler
	Permissions *handler.PermissionHandler
	Reports     *handler.ReportHandler
	Invitations *handler.InvitationHandler
	WebSocket   http.Handler

	// Health reports whether dependencies are reachable. Optional.
	Health func(ctx context.Context) error
}

// Router handles HTTP routing
type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	auth    func(http.Handler) http.Handler
	metrics *metrics.Metrics
}

// New creates a new router. m may be nil, which disables /metrics.
func New(h Handlers, resolver middleware.TokenResolver, m *metrics.Metrics) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		auth:    middleware.Auth(resolver),
		metrics: m,
	}

	r.setupRoutes(h)
	r.handler = middleware.Logger(m)(r.mux)

	return r
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// protected mounts fn behind bearer authentication
func (r *Router) protected(pattern string, fn http.HandlerFunc) {
	r.mux.Handle(pattern, r.auth(fn))
}

func (r *Router) setupRoutes(h Handlers) {
	// Public routes
	r.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		if h.Health != nil {
			if err := h.Health(req.Context()); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				api.Fail(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		api.Message(w, http.StatusOK, "ok")
	})
	if r.metrics != nil {
		r.mux.Handle("GET /metrics", r.metrics.Handler())
	}
	r.mux.HandleFunc("POST /api/auth/register", h.Users.Register)
	r.mux.HandleFunc("POST /api/auth/login", h.Users.Login)
	r.mux.HandleFunc("GET /api/invitations/code/{code}", h.Invitations.GetByCode)
	r.mux.HandleFunc("GET /api/permissions", h.Permissions.Catalog)
	if h.WebSocket != nil {
		r.mux.Handle("GET /ws", h.WebSocket)
	}

	// Account
	r.protected("GET /api/auth/me", h.Users.Me)
	r.protected("PUT /api/users/me/password", h.Users.ChangePassword)
	r.protected("PUT /api/users/me/location", h.Users.SelectLocation)
	r.protected("POST /api/users/{userID}/locations", h.Users.AssignLocations)

	// Locations and teams
	r.protected("GET /api/locations", h.Locations.List)
	r.protected("POST /api/locations", h.Locations.Create)
	r.protected("GET /api/locations/{id}", h.Locations.Get)
	r.protected("PUT /api/locations/{id}", h.Locations.Update)
	r.protected("DELETE /api/locations/{id}", h.Locations.Delete)
	r.protected("GET /api/locations/{id}/team", h.Locations.Team)
	r.protected("GET /api/locations/{id}/summary", h.Locations.Summary)
	r.protected("PUT /api/locations/{id}/members/{userID}/role", h.Locations.ChangeMemberRole)
	r.protected("DELETE /api/locations/{id}/members/{userID}", h.Locations.RemoveMember)

	// Role permissions
	r.protected("GET /api/locations/{id}/roles/{role}/permissions", h.Permissions.GetRole)
	r.protected("PUT /api/locations/{id}/roles/{role}/permissions", h.Permissions.UpdateRole)

	// Reports
	r.protected("GET /api/reports", h.Reports.List)
	r.protected("POST /api/reports", h.Reports.Create)
	r.protected("GET /api/reports/{id}", h.Reports.Get)
	r.protected("PUT /api/reports/{id}", h.Reports.Update)
	r.protected("DELETE /api/reports/{id}", h.Reports.Delete)
	r.protected("POST /api/reports/{id}/submit", h.Reports.Submit)
	r.protected("POST /api/reports/{id}/approve", h.Reports.Approve)
	r.protected("POST /api/reports/{id}/reject", h.Reports.Reject)

	// Invitations
	r.protected("GET /api/invitations", h.Invitations.List)
	r.protected("POST /api/invitations", h.Invitations.Create)
	r.protected("GET /api/invitations/{id}", h.Invitations.Get)
	r.protected("DELETE /api/invitations/{id}", h.Invitations.Cancel)
	r.protected("POST /api/invitations/{id}/resend", h.Invitations.Resend)
	r.protected("POST /api/invitations/code/{code}/accept", h.Invitations.Accept)
}
