package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type memLocations struct {
	byID map[uuid.UUID]*models.Location
}

func (m *memLocations) GetByID(_ context.Context, id uuid.UUID) (*models.Location, error) {
	loc, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("location")
	}
	return loc, nil
}

func (m *memLocations) CountOwnedBy(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, loc := range m.byID {
		if loc.OwnerID == userID {
			n++
		}
	}
	return n, nil
}

type memMemberships struct {
	rows []models.Membership
}

func (m *memMemberships) Get(_ context.Context, userID, locationID uuid.UUID) (*models.Membership, error) {
	for i := range m.rows {
		if m.rows[i].UserID == userID && m.rows[i].LocationID == locationID {
			return &m.rows[i], nil
		}
	}
	return nil, apperr.NotFound("membership")
}

func (m *memMemberships) CountForUser(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

type grantKey struct {
	location   uuid.UUID
	role       models.Role
	permission string
}

type memGrants struct {
	rows map[grantKey]bool
}

func newMemGrants() *memGrants { return &memGrants{rows: map[grantKey]bool{}} }

func (m *memGrants) Lookup(_ context.Context, locationID uuid.UUID, role models.Role, permission string) (GrantState, error) {
	granted, ok := m.rows[grantKey{locationID, role, permission}]
	switch {
	case !ok:
		return GrantAbsent, nil
	case granted:
		return GrantGranted, nil
	}
	return GrantDenied, nil
}

func (m *memGrants) Upsert(_ context.Context, g models.RolePermission) error {
	m.rows[grantKey{g.LocationID, g.Role, g.PermissionName}] = g.Granted
	return nil
}

func (m *memGrants) ListForRole(_ context.Context, locationID uuid.UUID, role models.Role) ([]models.RolePermission, error) {
	var out []models.RolePermission
	for k, v := range m.rows {
		if k.location == locationID && k.role == role {
			out = append(out, models.RolePermission{LocationID: k.location, Role: k.role, PermissionName: k.permission, Granted: v})
		}
	}
	return out, nil
}

type fixture struct {
	engine      *Engine
	locations   *memLocations
	memberships *memMemberships
	grants      *memGrants
	loc         *models.Location
	owner       *models.User
	manager     *models.User
	employee    *models.User
	outsider    *models.User
}

func newUser(role *models.Role) *models.User {
	return &models.User{ID: uuid.New(), Status: models.UserStatusActive, Role: role}
}

func rolePtr(r models.Role) *models.Role { return &r }

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		locations:   &memLocations{byID: map[uuid.UUID]*models.Location{}},
		memberships: &memMemberships{},
		grants:      newMemGrants(),
		owner:       newUser(rolePtr(models.RoleOwner)),
		manager:     newUser(rolePtr(models.RoleManager)),
		employee:    newUser(rolePtr(models.RoleEmployee)),
		outsider:    newUser(nil),
	}
	f.loc = &models.Location{ID: uuid.New(), OwnerID: f.owner.ID, IsActive: true}
	f.locations.byID[f.loc.ID] = f.loc
	f.memberships.rows = []models.Membership{
		{UserID: f.manager.ID, LocationID: f.loc.ID, Role: models.RoleManager, Status: models.MembershipStatusActive},
		{UserID: f.employee.ID, LocationID: f.loc.ID, Role: models.RoleEmployee, Status: models.MembershipStatusActive},
	}

	store := NewGrantStore(f.grants)
	require.NoError(t, store.SeedDefaults(context.Background(), f.loc.ID))
	f.engine = NewEngine(f.locations, f.memberships, store, opts)
	return f
}

func TestIsGrantedFailsClosedWithoutRow(t *testing.T) {
	store := NewGrantStore(newMemGrants())
	ctx := context.Background()

	for _, role := range models.Roles {
		for _, name := range Names() {
			granted, err := store.IsGranted(ctx, uuid.New(), role, name)
			require.NoError(t, err)
			assert.False(t, granted, "%s/%s", role, name)
		}
	}
}

func TestSeedDefaultsMatchesPolicyTable(t *testing.T) {
	grants := newMemGrants()
	store := NewGrantStore(grants)
	ctx := context.Background()
	loc := uuid.New()
	require.NoError(t, store.SeedDefaults(ctx, loc))

	assert.Len(t, grants.rows, len(models.Roles)*len(Names()))

	check := func(role models.Role, permission string, want bool) {
		t.Helper()
		got, err := store.IsGranted(ctx, loc, role, permission)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s/%s", role, permission)
	}

	for _, name := range Names() {
		check(models.RoleOwner, name, true)
	}
	check(models.RoleManager, ReportsApprove, true)
	check(models.RoleManager, UsersAssignLocations, false)
	check(models.RoleManager, SettingsPermissions, false)
	check(models.RoleManager, AnalyticsExport, false)
	check(models.RoleEmployee, ReportsSubmit, true)
	check(models.RoleEmployee, ReportsDelete, false)
	check(models.RoleEmployee, UsersView, true)
	check(models.RoleEmployee, UsersInvite, false)
	check(models.RoleEmployee, AnalyticsView, false)

	// seeded denials are explicit rows, not absence
	state, err := grants.Lookup(ctx, loc, models.RoleEmployee, UsersInvite)
	require.NoError(t, err)
	assert.Equal(t, GrantDenied, state)
}

func TestSetGrantRejectsUnknownPermission(t *testing.T) {
	store := NewGrantStore(newMemGrants())
	err := store.SetGrant(context.Background(), uuid.New(), models.RoleManager, "reports.teleport", true)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSetGrantIsIdempotent(t *testing.T) {
	grants := newMemGrants()
	store := NewGrantStore(grants)
	ctx := context.Background()
	loc := uuid.New()

	require.NoError(t, store.SetGrant(ctx, loc, models.RoleEmployee, AnalyticsView, true))
	require.NoError(t, store.SetGrant(ctx, loc, models.RoleEmployee, AnalyticsView, true))
	assert.Len(t, grants.rows, 1)

	granted, err := store.IsGranted(ctx, loc, models.RoleEmployee, AnalyticsView)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestEffectiveRole(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		user *models.User
		want models.Role
	}{
		{"owner by location", f.owner, models.RoleOwner},
		{"manager membership", f.manager, models.RoleManager},
		{"employee membership", f.employee, models.RoleEmployee},
		{"no relation", f.outsider, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := f.engine.EffectiveRole(ctx, tt.user, f.loc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestEffectiveRoleMembershipBeatsLegacyRole(t *testing.T) {
	f := newFixture(t, Options{LegacyRoleFallback: true})
	// global role says manager, membership says employee
	u := newUser(rolePtr(models.RoleManager))
	u.LocationID = &f.loc.ID
	f.memberships.rows = append(f.memberships.rows, models.Membership{
		UserID: u.ID, LocationID: f.loc.ID, Role: models.RoleEmployee, Status: models.MembershipStatusActive,
	})

	role, err := f.engine.EffectiveRole(context.Background(), u, f.loc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, role)
}

func TestLegacyRoleFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, Options{})
		u := newUser(rolePtr(models.RoleManager))
		u.LocationID = &f.loc.ID

		role, err := f.engine.EffectiveRole(ctx, u, f.loc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Role(""), role)
	})

	t.Run("enabled at current location", func(t *testing.T) {
		f := newFixture(t, Options{LegacyRoleFallback: true})
		u := newUser(rolePtr(models.RoleManager))
		u.LocationID = &f.loc.ID

		role, err := f.engine.EffectiveRole(ctx, u, f.loc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, role)
	})

	t.Run("never grants owner", func(t *testing.T) {
		f := newFixture(t, Options{LegacyRoleFallback: true})
		u := newUser(rolePtr(models.RoleOwner))
		u.LocationID = &f.loc.ID

		role, err := f.engine.EffectiveRole(ctx, u, f.loc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Role(""), role)
	})

	t.Run("other location", func(t *testing.T) {
		f := newFixture(t, Options{LegacyRoleFallback: true})
		u := newUser(rolePtr(models.RoleManager))
		other := uuid.New()
		u.LocationID = &other

		role, err := f.engine.EffectiveRole(ctx, u, f.loc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Role(""), role)
	})
}

func TestPendingMembershipHasNoAccess(t *testing.T) {
	f := newFixture(t, Options{})
	u := newUser(nil)
	f.memberships.rows = append(f.memberships.rows, models.Membership{
		UserID: u.ID, LocationID: f.loc.ID, Role: models.RoleManager, Status: models.MembershipStatusPending,
	})

	d, err := f.engine.CanPerform(context.Background(), u, LocationView, At(f.loc.ID))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCanPerform(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	employeeReport := Owned(f.loc.ID, f.employee.ID)
	managerInvite := Owned(f.loc.ID, f.manager.ID)
	ownerInvite := Owned(f.loc.ID, f.owner.ID)

	tests := []struct {
		name   string
		user   *models.User
		action Action
		res    Resource
		want   bool
	}{
		{"owner views location", f.owner, LocationView, At(f.loc.ID), true},
		{"outsider views location", f.outsider, LocationView, At(f.loc.ID), false},
		{"employee edits location", f.employee, LocationUpdate, At(f.loc.ID), false},
		{"manager deletes location", f.manager, LocationDelete, At(f.loc.ID), false},
		{"owner deletes location", f.owner, LocationDelete, At(f.loc.ID), true},

		{"employee creates report", f.employee, ReportCreate, At(f.loc.ID), true},
		{"creator edits report", f.employee, ReportEdit, employeeReport, true},
		{"owner edits employee report", f.owner, ReportEdit, employeeReport, false},
		{"creator deletes report", f.employee, ReportDelete, employeeReport, true},
		{"manager deletes employee report", f.manager, ReportDelete, employeeReport, false},
		{"creator submits", f.employee, ReportSubmit, employeeReport, true},
		{"manager submits for employee", f.manager, ReportSubmit, employeeReport, false},
		{"manager views employee report", f.manager, ReportView, employeeReport, true},
		{"employee views manager report", f.employee, ReportView, Owned(f.loc.ID, f.manager.ID), false},
		{"manager reviews", f.manager, ReportReview, employeeReport, true},
		{"employee reviews", f.employee, ReportReview, employeeReport, false},

		{"manager invites", f.manager, InvitationCreate, At(f.loc.ID), true},
		{"employee invites", f.employee, InvitationCreate, At(f.loc.ID), false},
		{"inviter cancels", f.manager, InvitationManage, managerInvite, true},
		{"owner cancels manager invite", f.owner, InvitationManage, managerInvite, true},
		{"manager cancels owner invite", f.manager, InvitationManage, ownerInvite, false},

		{"employee views team", f.employee, TeamView, At(f.loc.ID), true},
		{"manager removes member", f.manager, MemberRemove, At(f.loc.ID), true},
		{"manager assigns locations", f.manager, MemberAssign, At(f.loc.ID), false},
		{"manager manages permissions", f.manager, PermissionsManage, At(f.loc.ID), false},
		{"owner manages permissions", f.owner, PermissionsManage, At(f.loc.ID), true},
		{"manager views summary", f.manager, LocationReport, At(f.loc.ID), true},
		{"employee views summary", f.employee, LocationReport, At(f.loc.ID), false},
		{"employee selects location", f.employee, LocationSelect, At(f.loc.ID), true},
		{"outsider selects location", f.outsider, LocationSelect, At(f.loc.ID), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.engine.CanPerform(ctx, tt.user, tt.action, tt.res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Allowed, d.Reason)
			if !tt.want {
				assert.NotEmpty(t, d.Reason)
				assert.ErrorIs(t, d.Err(), apperr.ErrAccessDenied)
			}
		})
	}
}

func TestRevokedGrantDeniesEvenWithRole(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.engine.grants.SetGrant(ctx, f.loc.ID, models.RoleManager, ReportsApprove, false))

	d, err := f.engine.CanPerform(ctx, f.manager, ReportReview, Owned(f.loc.ID, f.employee.ID))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRoleCeilingBeatsGrant(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.engine.grants.SetGrant(ctx, f.loc.ID, models.RoleEmployee, ReportsApprove, true))

	d, err := f.engine.CanPerform(ctx, f.employee, ReportReview, Owned(f.loc.ID, f.manager.ID))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestInactivePrincipalDenied(t *testing.T) {
	f := newFixture(t, Options{})
	f.owner.Status = models.UserStatusInactive

	d, err := f.engine.CanPerform(context.Background(), f.owner, LocationView, At(f.loc.ID))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestUnknownLocationIsNotFound(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.engine.CanPerform(context.Background(), f.owner, LocationView, At(uuid.New()))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLocationCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("existing owner", func(t *testing.T) {
		f := newFixture(t, Options{})
		d, err := f.engine.CanPerform(ctx, f.owner, LocationCreate, Resource{})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("new user founding first location", func(t *testing.T) {
		f := newFixture(t, Options{})
		d, err := f.engine.CanPerform(ctx, f.outsider, LocationCreate, Resource{})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("employee of another location", func(t *testing.T) {
		f := newFixture(t, Options{})
		d, err := f.engine.CanPerform(ctx, f.employee, LocationCreate, Resource{})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("capacity reached", func(t *testing.T) {
		f := newFixture(t, Options{MaxLocationsPerOwner: 1})
		d, err := f.engine.CanPerform(ctx, f.owner, LocationCreate, Resource{})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "limit")
	})
}

func TestObserverSeesDecisions(t *testing.T) {
	f := newFixture(t, Options{})
	var seen []bool
	f.engine.Observe(func(a Action, d Decision) { seen = append(seen, d.Allowed) })

	require.NoError(t, f.engine.Authorize(context.Background(), f.owner, LocationView, At(f.loc.ID)))
	err := f.engine.Authorize(context.Background(), f.outsider, LocationView, At(f.loc.ID))
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	assert.Equal(t, []bool{true, false}, seen)
}

func TestRoleView(t *testing.T) {
	f := newFixture(t, Options{})

	view, err := f.engine.grants.RoleView(context.Background(), f.loc.ID, models.RoleEmployee)
	require.NoError(t, err)
	require.Len(t, view.Categories, len(Categories))

	granted := map[string]bool{}
	for _, perms := range view.Categories {
		for _, p := range perms {
			granted[p.Name] = p.Granted
		}
	}
	assert.True(t, granted[ReportsCreate])
	assert.False(t, granted[ReportsApprove])
}

func TestListAllGroupsByCategory(t *testing.T) {
	groups := ListAll()
	require.Len(t, groups, len(Categories))

	total := 0
	for i, g := range groups {
		assert.Equal(t, Categories[i], g.Category)
		for _, p := range g.Permissions {
			assert.Equal(t, g.Category, p.Category)
		}
		total += len(g.Permissions)
	}
	assert.Equal(t, len(Names()), total)
}
