package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// PermissionRepository reads the provisioned permission catalog
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// List returns every permission ordered by category then display name
func (r *PermissionRepository) List(ctx context.Context) ([]models.Permission, error) {
	query := `
		SELECT id, name, display_name, description, category
		FROM permissions
		ORDER BY category ASC, display_name ASC
	`

	permissions := []models.Permission{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &permissions, query); err != nil {
		return nil, wrap("list permissions", "permission", err)
	}

	return permissions, nil
}

// RolePermissionRepository handles per-location role grants
type RolePermissionRepository struct {
	db *sqlx.DB
}

// NewRolePermissionRepository creates a new role permission repository
func NewRolePermissionRepository(db *sqlx.DB) *RolePermissionRepository {
	return &RolePermissionRepository{db: db}
}

// Lookup reads the stored grant. A missing row is reported as GrantAbsent.
func (r *RolePermissionRepository) Lookup(ctx context.Context, locationID uuid.UUID, role models.Role, permission string) (authz.GrantState, error) {
	query := `
		SELECT granted FROM role_permissions
		WHERE location_id = $1 AND role = $2 AND permission_name = $3
	`

	var granted bool
	err := db.Conn(ctx, r.db).GetContext(ctx, &granted, query, locationID, role, permission)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return authz.GrantAbsent, nil
	case err != nil:
		return authz.GrantAbsent, wrap("look up grant", "permission", err)
	case granted:
		return authz.GrantGranted, nil
	}
	return authz.GrantDenied, nil
}

// Upsert writes one grant keyed by (location, role, permission)
func (r *RolePermissionRepository) Upsert(ctx context.Context, grant models.RolePermission) error {
	query := `
		INSERT INTO role_permissions (location_id, role, permission_name, granted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location_id, role, permission_name)
		DO UPDATE SET granted = EXCLUDED.granted, updated_at = NOW()
	`

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, grant.LocationID, grant.Role, grant.PermissionName, grant.Granted)
	if err != nil {
		return wrap("upsert grant", "permission", err)
	}
	return nil
}

// ListForRole returns every stored grant for a role at a location
func (r *RolePermissionRepository) ListForRole(ctx context.Context, locationID uuid.UUID, role models.Role) ([]models.RolePermission, error) {
	query := `
		SELECT location_id, role, permission_name, granted
		FROM role_permissions
		WHERE location_id = $1 AND role = $2
		ORDER BY permission_name ASC
	`

	grants := []models.RolePermission{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &grants, query, locationID, role); err != nil {
		return nil, wrap("list grants", "permission", err)
	}

	return grants, nil
}
