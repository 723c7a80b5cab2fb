package models

import (
	"github.com/google/uuid"
)

// Permission is a catalog entry such as "reports.approve"
type Permission struct {
	ID          int    `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	DisplayName string `db:"display_name" json:"display_name"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
}

// PermissionCategory groups the catalog for listing
type PermissionCategory struct {
	Category    string       `json:"category"`
	Permissions []Permission `json:"permissions"`
}

// RolePermission is a stored grant for (location, role, permission)
type RolePermission struct {
	LocationID     uuid.UUID `db:"location_id" json:"location_id"`
	Role           Role      `db:"role" json:"role"`
	PermissionName string    `db:"permission_name" json:"permission"`
	Granted        bool      `db:"granted" json:"granted"`
}

// GrantedPermission is a catalog entry annotated with a role's grant
type GrantedPermission struct {
	Permission
	Granted bool `json:"granted"`
}

// RolePermissionsView is the grouped grant table for one role at one location
type RolePermissionsView struct {
	LocationID uuid.UUID                      `json:"location_id"`
	Role       Role                           `json:"role"`
	Categories map[string][]GrantedPermission `json:"categories"`
}

// GrantUpdate sets one permission for a role
type GrantUpdate struct {
	Permission string `json:"permission" validate:"required"`
	Granted    bool   `json:"granted"`
}

// RolePermissionsRequest is used for bulk grant updates
type RolePermissionsRequest struct {
	Permissions []GrantUpdate `json:"permissions" validate:"required,min=1,dive"`
}
