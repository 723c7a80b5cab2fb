package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// GrantState is the stored state of one (location, role, permission) triple.
type GrantState int

const (
	GrantAbsent GrantState = iota
	GrantDenied
	GrantGranted
)

func (s GrantState) String() string {
	switch s {
	case GrantGranted:
		return "granted"
	case GrantDenied:
		return "denied"
	}
	return "absent"
}

// GrantRepository persists role grants.
type GrantRepository interface {
	Lookup(ctx context.Context, locationID uuid.UUID, role models.Role, permission string) (GrantState, error)
	Upsert(ctx context.Context, grant models.RolePermission) error
	ListForRole(ctx context.Context, locationID uuid.UUID, role models.Role) ([]models.RolePermission, error)
}

// GrantStore is the per-location role grant table. Reads are fail-closed:
// only an explicit granted row allows.
type GrantStore struct {
	repo GrantRepository
}

func NewGrantStore(repo GrantRepository) *GrantStore {
	return &GrantStore{repo: repo}
}

// IsGranted collapses the stored tri-state to a decision.
func (s *GrantStore) IsGranted(ctx context.Context, locationID uuid.UUID, role models.Role, permission string) (bool, error) {
	state, err := s.repo.Lookup(ctx, locationID, role, permission)
	if err != nil {
		return false, fmt.Errorf("failed to look up grant: %w", err)
	}
	return state == GrantGranted, nil
}

// SetGrant upserts one grant. Unknown permissions and roles are rejected.
func (s *GrantStore) SetGrant(ctx context.Context, locationID uuid.UUID, role models.Role, permission string, granted bool) error {
	if !role.Valid() {
		return apperr.Invalid("role", "oneof")
	}
	if _, ok := Lookup(permission); !ok {
		return apperr.Invalid("permission", "unknown permission "+permission)
	}

	return s.repo.Upsert(ctx, models.RolePermission{
		LocationID:     locationID,
		Role:           role,
		PermissionName: permission,
		Granted:        granted,
	})
}

// SeedDefaults writes the baseline grant set for a new location.
func (s *GrantStore) SeedDefaults(ctx context.Context, locationID uuid.UUID) error {
	for _, grant := range DefaultGrants(locationID) {
		if err := s.repo.Upsert(ctx, grant); err != nil {
			return fmt.Errorf("failed to seed %s/%s: %w", grant.Role, grant.PermissionName, err)
		}
	}
	return nil
}

// RoleView returns the catalog grouped by category with the role's grants.
func (s *GrantStore) RoleView(ctx context.Context, locationID uuid.UUID, role models.Role) (*models.RolePermissionsView, error) {
	rows, err := s.repo.ListForRole(ctx, locationID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	granted := make(map[string]bool, len(rows))
	for _, row := range rows {
		granted[row.PermissionName] = row.Granted
	}

	view := &models.RolePermissionsView{
		LocationID: locationID,
		Role:       role,
		Categories: make(map[string][]models.GrantedPermission, len(Categories)),
	}
	for _, group := range ListAll() {
		for _, p := range group.Permissions {
			view.Categories[group.Category] = append(view.Categories[group.Category], models.GrantedPermission{
				Permission: p,
				Granted:    granted[p.Name],
			})
		}
	}
	return view, nil
}
