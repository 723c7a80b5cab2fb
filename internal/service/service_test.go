package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type harness struct {
	db          *memDB
	repos       *repository.Repositories
	grants      *authz.GrantStore
	engine      *authz.Engine
	publisher   *recordingPublisher
	mailer      *recordingMailer
	clock       time.Time
	auth        *AuthService
	locations   *LocationService
	members     *MembershipService
	permissions *PermissionService
	reports     *ReportService
	invitations *InvitationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		db:        newMemDB(),
		publisher: &recordingPublisher{},
		mailer:    &recordingMailer{},
		clock:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.repos = h.db.repositories()
	h.grants = authz.NewGrantStore(h.repos.RolePermission)
	h.engine = authz.NewEngine(h.repos.Location, h.repos.Membership, h.grants, authz.Options{})

	h.auth = NewAuthService(h.repos, JWTConfig{Secret: "test-secret", ExpiresIn: 1})
	h.locations = NewLocationService(h.repos, h.engine, h.grants)
	h.members = NewMembershipService(h.repos, h.engine, h.publisher)
	h.permissions = NewPermissionService(h.repos, h.engine, h.grants)
	h.reports = NewReportService(h.repos, h.engine, h.publisher)
	h.reports.now = h.now
	h.invitations = NewInvitationService(h.repos, h.engine, h.mailer, h.publisher, InvitationConfig{
		AcceptURL: "https://shifts.example.com/invite/",
	})
	h.invitations.now = h.now

	return h
}

func (h *harness) now() time.Time { return h.clock }

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

// newUser stores a pending user with no location, as registration does
func (h *harness) newUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := h.repos.User.Create(context.Background(), models.User{
		Name:   name,
		Email:  email,
		Status: models.UserStatusPending,
	})
	require.NoError(t, err)
	return u
}

func (h *harness) reload(t *testing.T, u *models.User) *models.User {
	t.Helper()
	fresh, err := h.repos.User.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

// newLocation founds a location and returns the reloaded owner with it
func (h *harness) newLocation(t *testing.T, owner *models.User, name string) (*models.User, *models.Location) {
	t.Helper()
	loc, err := h.locations.CreateLocation(context.Background(), owner, models.LocationRequest{Name: name})
	require.NoError(t, err)
	return h.reload(t, owner), loc
}

// addMember creates a user who already works at loc with role
func (h *harness) addMember(t *testing.T, loc *models.Location, name string, role models.Role) *models.User {
	t.Helper()
	ctx := context.Background()
	u := h.newUser(t, name, name+"@example.com")
	require.NoError(t, h.repos.Membership.Upsert(ctx, models.Membership{
		UserID:     u.ID,
		LocationID: loc.ID,
		Role:       role,
		Status:     models.MembershipStatusActive,
	}))
	require.NoError(t, h.repos.User.SetCurrentLocation(ctx, u.ID, &loc.ID, models.UserStatusActive))
	require.NoError(t, h.repos.User.SetLegacyRole(ctx, u.ID, &role))
	return h.reload(t, u)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// amt is a request amount
func amt(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func reportRequest(locationID uuid.UUID) models.ReportRequest {
	return models.ReportRequest{
		LocationID:     locationID,
		ReportDate:     "2025-02-28",
		ShiftStartTime: "09:00",
		ShiftEndTime:   "17:30",
		CashSales:      amt("100.50"),
		CardSales:      amt("200.00"),
		OpeningCash:    amt("50.00"),
		ClosingCash:    amt("140.50"),
		TipsCash:       amt("10.00"),
		TipsCard:       amt("5.00"),
	}
}
