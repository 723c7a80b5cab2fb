// Package authz decides whether a principal may act on a location-scoped
// resource. It combines the location owner, the principal's membership role,
// the per-location role grants and instance ownership of the resource.
package authz

import (
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// Permission keys.
const (
	ReportsCreate  = "reports.create"
	ReportsView    = "reports.view"
	ReportsEdit    = "reports.edit"
	ReportsDelete  = "reports.delete"
	ReportsApprove = "reports.approve"
	ReportsSubmit  = "reports.submit"

	UsersInvite          = "users.invite"
	UsersView            = "users.view"
	UsersEdit            = "users.edit"
	UsersRemove          = "users.remove"
	UsersAssignLocations = "users.assign_locations"

	SettingsView        = "settings.view"
	SettingsEdit        = "settings.edit"
	SettingsPermissions = "settings.permissions"

	LocationsCreate = "locations.create"
	LocationsEdit   = "locations.edit"
	LocationsDelete = "locations.delete"
	LocationsView   = "locations.view"

	AnalyticsView   = "analytics.view"
	AnalyticsExport = "analytics.export"
)

// Categories in listing order.
var Categories = []string{"reports", "users", "settings", "locations", "analytics"}

// catalog is the provisioned permission set. migrations/000002 inserts the
// same rows; a new permission needs both.
var catalog = []models.Permission{
	{Name: ReportsCreate, DisplayName: "Create Reports", Description: "Can create new shift reports", Category: "reports"},
	{Name: ReportsView, DisplayName: "View Reports", Description: "Can view shift reports", Category: "reports"},
	{Name: ReportsEdit, DisplayName: "Edit Reports", Description: "Can edit existing reports", Category: "reports"},
	{Name: ReportsDelete, DisplayName: "Delete Reports", Description: "Can delete reports", Category: "reports"},
	{Name: ReportsApprove, DisplayName: "Approve Reports", Description: "Can approve submitted reports", Category: "reports"},
	{Name: ReportsSubmit, DisplayName: "Submit Reports", Description: "Can submit reports for approval", Category: "reports"},

	{Name: UsersInvite, DisplayName: "Invite Users", Description: "Can invite new users to the location", Category: "users"},
	{Name: UsersView, DisplayName: "View Users", Description: "Can view team members", Category: "users"},
	{Name: UsersEdit, DisplayName: "Edit Users", Description: "Can edit user roles and information", Category: "users"},
	{Name: UsersRemove, DisplayName: "Remove Users", Description: "Can remove users from location", Category: "users"},
	{Name: UsersAssignLocations, DisplayName: "Assign to Locations", Description: "Can assign users to multiple locations", Category: "users"},

	{Name: SettingsView, DisplayName: "View Settings", Description: "Can view location settings", Category: "settings"},
	{Name: SettingsEdit, DisplayName: "Edit Settings", Description: "Can edit location settings", Category: "settings"},
	{Name: SettingsPermissions, DisplayName: "Manage Permissions", Description: "Can manage role permissions", Category: "settings"},

	{Name: LocationsCreate, DisplayName: "Create Locations", Description: "Can create new locations", Category: "locations"},
	{Name: LocationsEdit, DisplayName: "Edit Locations", Description: "Can edit location information", Category: "locations"},
	{Name: LocationsDelete, DisplayName: "Delete Locations", Description: "Can delete locations", Category: "locations"},
	{Name: LocationsView, DisplayName: "View Locations", Description: "Can view location information", Category: "locations"},

	{Name: AnalyticsView, DisplayName: "View Analytics", Description: "Can view reports and analytics", Category: "analytics"},
	{Name: AnalyticsExport, DisplayName: "Export Data", Description: "Can export reports and data", Category: "analytics"},
}

var catalogIndex = func() map[string]models.Permission {
	idx := make(map[string]models.Permission, len(catalog))
	for _, p := range catalog {
		idx[p.Name] = p
	}
	return idx
}()

// ListAll returns the catalog grouped by category in listing order. The
// result is a copy; callers may modify it.
func ListAll() []models.PermissionCategory {
	out := make([]models.PermissionCategory, 0, len(Categories))
	for _, category := range Categories {
		group := models.PermissionCategory{Category: category}
		for _, p := range catalog {
			if p.Category == category {
				group.Permissions = append(group.Permissions, p)
			}
		}
		out = append(out, group)
	}
	return out
}

// Lookup returns the catalog entry for a permission key.
func Lookup(name string) (models.Permission, bool) {
	p, ok := catalogIndex[name]
	return p, ok
}

// Names returns every permission key in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}
