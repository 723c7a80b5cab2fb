package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// LocationService is the part of service.LocationService the handlers use
type LocationService interface {
	GetLocations(ctx context.Context, principal *models.User) ([]models.Location, error)
	GetLocation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Location, error)
	CreateLocation(ctx context.Context, principal *models.User, req models.LocationRequest) (*models.Location, error)
	UpdateLocation(ctx context.Context, principal *models.User, id uuid.UUID, req models.LocationUpdateRequest) (*models.Location, error)
	DeleteLocation(ctx context.Context, principal *models.User, id uuid.UUID) error
	GetSummary(ctx context.Context, principal *models.User, id uuid.UUID, from, to time.Time) (*models.LocationSummary, error)
}

// LocationHandler handles locations and their teams
type LocationHandler struct {
	locationService   LocationService
	membershipService MembershipService
}

func NewLocationHandler(locationService LocationService, membershipService MembershipService) *LocationHandler {
	return &LocationHandler{
		locationService:   locationService,
		membershipService: membershipService,
	}
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	locations, err := h.locationService.GetLocations(r.Context(), user)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.LocationRequest
	if !api.Decode(w, r, &req) {
		return
	}

	location, err := h.locationService.CreateLocation(r.Context(), user, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, location)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	location, err := h.locationService.GetLocation(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, location)
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.LocationUpdateRequest
	if !api.Decode(w, r, &req) {
		return
	}

	location, err := h.locationService.UpdateLocation(r.Context(), user, id, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, location)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.locationService.DeleteLocation(r.Context(), user, id); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summary totals approved reports. from/to are optional YYYY-MM-DD dates.
func (h *LocationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var from, to time.Time
	if d, err := queryDate(r, "from"); err != nil {
		api.Error(w, r, err)
		return
	} else if d != nil {
		from = *d
	}
	if d, err := queryDate(r, "to"); err != nil {
		api.Error(w, r, err)
		return
	} else if d != nil {
		to = *d
	}

	summary, err := h.locationService.GetSummary(r.Context(), user, id, from, to)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

func (h *LocationHandler) Team(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	team, err := h.membershipService.GetTeam(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, team)
}

func (h *LocationHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req models.MemberRoleRequest
	if !api.Decode(w, r, &req) {
		return
	}

	membership, err := h.membershipService.ChangeRole(r.Context(), user, id, userID, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, membership)
}

func (h *LocationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.membershipService.RemoveMember(r.Context(), user, id, userID); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
