package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type PermissionService interface {
	GetCatalog(ctx context.Context) ([]models.PermissionCategory, error)
	GetRolePermissions(ctx context.Context, principal *models.User, locationID uuid.UUID, role models.Role) (*models.RolePermissionsView, error)
	UpdateRolePermissions(ctx context.Context, principal *models.User, locationID uuid.UUID, role models.Role, req models.RolePermissionsRequest) (*models.RolePermissionsView, error)
}

// PermissionHandler serves the permission catalog and per-role grants
type PermissionHandler struct {
	permissionService PermissionService
}

func NewPermissionHandler(permissionService PermissionService) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService}
}

func (h *PermissionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.permissionService.GetCatalog(r.Context())
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, catalog)
}

func (h *PermissionHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.permissionService.GetRolePermissions(r.Context(), user, id, models.Role(r.PathValue("role")))
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, view)
}

func (h *PermissionHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.RolePermissionsRequest
	if !api.Decode(w, r, &req) {
		return
	}

	view, err := h.permissionService.UpdateRolePermissions(r.Context(), user, id, models.Role(r.PathValue("role")), req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, view)
}
