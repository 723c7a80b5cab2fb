package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/models"
	"github.com/pizza-nz/shiftreport-service/internal/service"
)

// AuthService is the part of service.AuthService the handlers use
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*service.AuthResult, error)
	Me(ctx context.Context, principal *models.User) (*models.User, error)
	ChangePassword(ctx context.Context, principal *models.User, req models.ChangePasswordRequest) error
}

// MembershipService is the part of service.MembershipService the handlers use
type MembershipService interface {
	GetTeam(ctx context.Context, principal *models.User, locationID uuid.UUID) (*models.Team, error)
	ChangeRole(ctx context.Context, principal *models.User, locationID, userID uuid.UUID, req models.MemberRoleRequest) (*models.Membership, error)
	RemoveMember(ctx context.Context, principal *models.User, locationID, userID uuid.UUID) error
	AssignLocations(ctx context.Context, principal *models.User, userID uuid.UUID, req models.AssignLocationsRequest) ([]models.Membership, error)
	SelectLocation(ctx context.Context, principal *models.User, req models.CurrentLocationRequest) (*models.User, error)
}

// UserHandler handles account and current-user requests
type UserHandler struct {
	authService       AuthService
	membershipService MembershipService
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService AuthService, membershipService MembershipService) *UserHandler {
	return &UserHandler{
		authService:       authService,
		membershipService: membershipService,
	}
}

// Register creates an account and signs it in
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !api.Decode(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, result)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !api.Decode(w, r, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// Me returns the current user with memberships
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	me, err := h.authService.Me(r.Context(), user)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, me)
}

// ChangePassword changes the current user's password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if !api.Decode(w, r, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user, req); err != nil {
		api.Error(w, r, err)
		return
	}

	api.Message(w, http.StatusOK, "Password changed successfully")
}

// SelectLocation switches the current location pointer
func (h *UserHandler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.CurrentLocationRequest
	if !api.Decode(w, r, &req) {
		return
	}

	updated, err := h.membershipService.SelectLocation(r.Context(), user, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, updated)
}

// AssignLocations gives a user memberships at several of the owner's locations
func (h *UserHandler) AssignLocations(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req models.AssignLocationsRequest
	if !api.Decode(w, r, &req) {
		return
	}

	memberships, err := h.membershipService.AssignLocations(r.Context(), user, userID, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, memberships)
}
