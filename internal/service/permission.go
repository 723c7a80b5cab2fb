package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// PermissionService exposes the permission catalog and per-location grants
type PermissionService struct {
	repos  *repository.Repositories
	engine *authz.Engine
	grants *authz.GrantStore
}

// NewPermissionService creates a new permission service
func NewPermissionService(repos *repository.Repositories, engine *authz.Engine, grants *authz.GrantStore) *PermissionService {
	return &PermissionService{
		repos:  repos,
		engine: engine,
		grants: grants,
	}
}

// GetCatalog returns the provisioned permissions grouped by category
func (s *PermissionService) GetCatalog(ctx context.Context) ([]models.PermissionCategory, error) {
	permissions, err := s.repos.Permission.List(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]models.Permission, len(authz.Categories))
	for _, p := range permissions {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	groups := make([]models.PermissionCategory, 0, len(byCategory))
	for _, category := range authz.Categories {
		if perms, ok := byCategory[category]; ok {
			groups = append(groups, models.PermissionCategory{Category: category, Permissions: perms})
			delete(byCategory, category)
		}
	}
	for category := range byCategory {
		log.Warn().Str("category", category).Msg("permission category missing from catalog order")
	}

	return groups, nil
}

func parseRole(role models.Role) error {
	if !role.Valid() {
		return apperr.Invalid("role", "oneof=owner manager employee")
	}
	return nil
}

// GetRolePermissions returns a role's grants at a location
func (s *PermissionService) GetRolePermissions(ctx context.Context, principal *models.User, locationID uuid.UUID, role models.Role) (*models.RolePermissionsView, error) {
	if err := parseRole(role); err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(ctx, principal, authz.PermissionsManage, authz.At(locationID)); err != nil {
		return nil, err
	}

	return s.grants.RoleView(ctx, locationID, role)
}

// UpdateRolePermissions applies grant changes for a role at a location in
// one transaction. The owner's grants are fixed.
func (s *PermissionService) UpdateRolePermissions(ctx context.Context, principal *models.User, locationID uuid.UUID, role models.Role, req models.RolePermissionsRequest) (*models.RolePermissionsView, error) {
	if err := parseRole(role); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if role == models.RoleOwner {
		return nil, apperr.Invalid("role", "owner permissions cannot be modified")
	}
	if err := s.engine.Authorize(ctx, principal, authz.PermissionsManage, authz.At(locationID)); err != nil {
		return nil, err
	}

	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, g := range req.Permissions {
			if err := s.grants.SetGrant(ctx, locationID, role, g.Permission, g.Granted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("location_id", locationID.String()).
		Str("role", string(role)).
		Int("changes", len(req.Permissions)).
		Str("updated_by", principal.ID.String()).
		Msg("role permissions updated")

	return s.grants.RoleView(ctx, locationID, role)
}
