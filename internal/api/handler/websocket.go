package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/middleware"
	"github.com/pizza-nz/shiftreport-service/internal/models"
	"github.com/pizza-nz/shiftreport-service/internal/websockets"
)

// Authorizer is satisfied by *authz.Engine
type Authorizer interface {
	Authorize(ctx context.Context, principal *models.User, action authz.Action, res authz.Resource) error
}

type WebSocketHandler struct {
	hub      *websockets.Hub
	resolver middleware.TokenResolver
	engine   Authorizer
	upgrader *websocket.Upgrader
}

func NewWebSocketHandler(hub *websockets.Hub, resolver middleware.TokenResolver, engine Authorizer, upgrader *websocket.Upgrader) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		resolver: resolver,
		engine:   engine,
		upgrader: upgrader,
	}
}

// ServeHTTP authenticates with ?token= (browsers cannot set headers on a
// websocket handshake) and optionally subscribes to ?location_id= up front.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var ok bool
		if token, ok = middleware.BearerToken(r); !ok {
			api.Unauthorized(w, "token is required")
			return
		}
	}

	user, err := h.resolver.GetUserFromToken(r.Context(), token)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if user.Status == models.UserStatusInactive {
		api.Unauthorized(w, "account is inactive")
		return
	}

	var initial []uuid.UUID
	locationID, err := queryID(r, "location_id")
	if err != nil {
		api.Error(w, r, err)
		return
	}
	if locationID != nil {
		if err := h.engine.Authorize(r.Context(), user, authz.LocationView, authz.At(*locationID)); err != nil {
			api.Error(w, r, err)
			return
		}
		initial = append(initial, *locationID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// If upgrading fails, the upgrader has already written the error to the response
		return
	}

	authorize := func(ctx context.Context, id uuid.UUID) error {
		return h.engine.Authorize(ctx, user, authz.LocationView, authz.At(id))
	}
	websockets.ServeWs(h.hub, conn, user.ID, authorize, initial...)
}
