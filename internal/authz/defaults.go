package authz

import (
	"github.com/google/uuid"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// defaultGrants is the baseline written for every new location. Permissions
// not listed for a role are seeded as explicit denials.
var defaultGrants = map[models.Role][]string{
	models.RoleOwner: Names(),
	models.RoleManager: {
		ReportsCreate, ReportsView, ReportsEdit, ReportsSubmit, ReportsDelete, ReportsApprove,
		UsersInvite, UsersView, UsersEdit, UsersRemove,
		SettingsView,
		LocationsView,
		AnalyticsView,
	},
	models.RoleEmployee: {
		ReportsCreate, ReportsView, ReportsEdit, ReportsSubmit,
		UsersView,
		LocationsView,
	},
}

// DefaultGranted reports whether the baseline grants permission to role.
func DefaultGranted(role models.Role, permission string) bool {
	for _, name := range defaultGrants[role] {
		if name == permission {
			return true
		}
	}
	return false
}

// DefaultGrants returns the full baseline for one location: one row per
// role and catalog permission.
func DefaultGrants(locationID uuid.UUID) []models.RolePermission {
	rows := make([]models.RolePermission, 0, len(models.Roles)*len(catalog))
	for _, role := range models.Roles {
		for _, p := range catalog {
			rows = append(rows, models.RolePermission{
				LocationID:     locationID,
				Role:           role,
				PermissionName: p.Name,
				Granted:        DefaultGranted(role, p.Name),
			})
		}
	}
	return rows
}
