package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type InvitationService interface {
	CreateInvitation(ctx context.Context, principal *models.User, req models.InvitationRequest) (*models.Invitation, error)
	GetInvitations(ctx context.Context, principal *models.User, locationID *uuid.UUID, status *models.InvitationStatus) ([]models.Invitation, error)
	GetInvitation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Invitation, error)
	GetByCode(ctx context.Context, code string) (*models.PublicInvitation, error)
	AcceptInvitation(ctx context.Context, principal *models.User, code string) (*models.Membership, error)
	ResendInvitation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Invitation, error)
	CancelInvitation(ctx context.Context, principal *models.User, id uuid.UUID) error
}

// InvitationHandler handles invitation requests
type InvitationHandler struct {
	invitationService InvitationService
}

func NewInvitationHandler(invitationService InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// List accepts optional location_id and status filters
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	locationID, err := queryID(r, "location_id")
	if err != nil {
		api.Error(w, r, err)
		return
	}

	var status *models.InvitationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.InvitationStatus(raw)
		switch s {
		case models.InvitationStatusPending, models.InvitationStatusAccepted, models.InvitationStatusExpired:
		default:
			api.Error(w, r, apperr.Invalid("status", "oneof=pending accepted expired"))
			return
		}
		status = &s
	}

	invitations, err := h.invitationService.GetInvitations(r.Context(), user, locationID, status)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, invitations)
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.InvitationRequest
	if !api.Decode(w, r, &req) {
		return
	}

	invitation, err := h.invitationService.CreateInvitation(r.Context(), user, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, invitation)
}

func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	invitation, err := h.invitationService.GetInvitation(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, invitation)
}

func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.invitationService.CancelInvitation(r.Context(), user, id); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	invitation, err := h.invitationService.ResendInvitation(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, invitation)
}

// GetByCode is public: it only exposes what the code holder may see
func (h *InvitationHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	invitation, err := h.invitationService.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, invitation)
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	membership, err := h.invitationService.AcceptInvitation(r.Context(), user, r.PathValue("code"))
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, membership)
}
