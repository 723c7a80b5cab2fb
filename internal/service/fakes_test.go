package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type memberKey struct {
	user     uuid.UUID
	location uuid.UUID
}

type grantKey struct {
	location   uuid.UUID
	role       models.Role
	permission string
}

// memDB is an in-memory stand-in for Postgres. RunInTx snapshots every table
// and restores it when the callback fails.
type memDB struct {
	mu          sync.Mutex
	users       map[uuid.UUID]models.User
	locations   map[uuid.UUID]models.Location
	memberships map[memberKey]models.Membership
	grants      map[grantKey]bool
	invitations map[uuid.UUID]models.Invitation
	reports     map[uuid.UUID]models.Report
	// fail makes the named operation return the error
	fail map[string]error
	seq  int
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[uuid.UUID]models.User{},
		locations:   map[uuid.UUID]models.Location{},
		memberships: map[memberKey]models.Membership{},
		grants:      map[grantKey]bool{},
		invitations: map[uuid.UUID]models.Invitation{},
		reports:     map[uuid.UUID]models.Report{},
		fail:        map[string]error{},
	}
}

func (m *memDB) repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:             memTx{m},
		User:           memUsers{m},
		Location:       memLocations{m},
		Membership:     memMemberships{m},
		Permission:     memPermissions{},
		RolePermission: memGrants{m},
		Invitation:     memInvitations{m},
		Report:         memReports{m},
	}
}

// tick returns a strictly increasing timestamp for created_at ordering
func (m *memDB) tick() time.Time {
	m.seq++
	return time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func (m *memDB) check(op string) error {
	return m.fail[op]
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type memTx struct{ db *memDB }

func (t memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.db.mu.Lock()
	users, locations := cloneMap(t.db.users), cloneMap(t.db.locations)
	memberships, grants := cloneMap(t.db.memberships), cloneMap(t.db.grants)
	invitations, reports := cloneMap(t.db.invitations), cloneMap(t.db.reports)
	t.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.db.mu.Lock()
		t.db.users, t.db.locations = users, locations
		t.db.memberships, t.db.grants = memberships, grants
		t.db.invitations, t.db.reports = invitations, reports
		t.db.mu.Unlock()
		return err
	}
	return nil
}

type memUsers struct{ db *memDB }

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (s memUsers) Create(_ context.Context, user models.User) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, apperr.New(apperr.ErrDuplicateConflict, "user already exists")
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = s.db.tick()
	user.UpdatedAt = user.CreatedAt
	s.db.users[user.ID] = user
	return &user, nil
}

func (s memUsers) update(id uuid.UUID, fn func(u *models.User)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	fn(&u)
	s.db.users[id] = u
	return nil
}

func (s memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return s.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (s memUsers) SetCurrentLocation(_ context.Context, id uuid.UUID, locationID *uuid.UUID, status models.UserStatus) error {
	if err := s.db.check("user.set_current_location"); err != nil {
		return err
	}
	return s.update(id, func(u *models.User) {
		u.LocationID = locationID
		u.Status = status
	})
}

func (s memUsers) SetLegacyRole(_ context.Context, id uuid.UUID, role *models.Role) error {
	return s.update(id, func(u *models.User) { u.Role = role })
}

type memLocations struct{ db *memDB }

func (s memLocations) GetByID(_ context.Context, id uuid.UUID) (*models.Location, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	loc, ok := s.db.locations[id]
	if !ok {
		return nil, apperr.NotFound("location")
	}
	return &loc, nil
}

func (s memLocations) CountOwnedBy(_ context.Context, userID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, loc := range s.db.locations {
		if loc.OwnerID == userID {
			n++
		}
	}
	return n, nil
}

func (s memLocations) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Location, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Location{}
	for _, loc := range s.db.locations {
		m, member := s.db.memberships[memberKey{userID, loc.ID}]
		if loc.OwnerID == userID || (member && m.Status == models.MembershipStatusActive) {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memLocations) Create(_ context.Context, loc models.Location) (*models.Location, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	loc.ID = uuid.New()
	loc.CreatedAt = s.db.tick()
	loc.UpdatedAt = loc.CreatedAt
	s.db.locations[loc.ID] = loc
	return &loc, nil
}

func (s memLocations) Update(_ context.Context, loc models.Location) (*models.Location, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.locations[loc.ID]; !ok {
		return nil, apperr.NotFound("location")
	}
	s.db.locations[loc.ID] = loc
	return &loc, nil
}

func (s memLocations) InUse(_ context.Context, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k := range s.db.memberships {
		if k.location == id {
			return true, nil
		}
	}
	owner := s.db.locations[id].OwnerID
	for _, u := range s.db.users {
		if u.LocationID != nil && *u.LocationID == id && u.ID != owner {
			return true, nil
		}
	}
	for _, r := range s.db.reports {
		if r.LocationID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s memLocations) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.locations[id]; !ok {
		return apperr.NotFound("location")
	}
	delete(s.db.locations, id)
	for k, u := range s.db.users {
		if u.LocationID != nil && *u.LocationID == id {
			u.LocationID = nil
			s.db.users[k] = u
		}
	}
	return nil
}

type memMemberships struct{ db *memDB }

func (s memMemberships) Get(_ context.Context, userID, locationID uuid.UUID) (*models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.memberships[memberKey{userID, locationID}]
	if !ok {
		return nil, apperr.NotFound("membership")
	}
	return &m, nil
}

func (s memMemberships) CountForUser(_ context.Context, userID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for k := range s.db.memberships {
		if k.user == userID {
			n++
		}
	}
	return n, nil
}

func (s memMemberships) Create(_ context.Context, m models.Membership) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{m.UserID, m.LocationID}
	if _, ok := s.db.memberships[key]; ok {
		return apperr.ErrDuplicateMembership
	}
	m.CreatedAt = s.db.tick()
	s.db.memberships[key] = m
	return nil
}

func (s memMemberships) Upsert(_ context.Context, m models.Membership) error {
	if err := s.db.check("membership.upsert"); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{m.UserID, m.LocationID}
	if existing, ok := s.db.memberships[key]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = s.db.tick()
	}
	s.db.memberships[key] = m
	return nil
}

func (s memMemberships) UpdateRole(_ context.Context, userID, locationID uuid.UUID, role models.Role) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{userID, locationID}
	m, ok := s.db.memberships[key]
	if !ok {
		return apperr.NotFound("membership")
	}
	m.Role = role
	s.db.memberships[key] = m
	return nil
}

func (s memMemberships) Delete(_ context.Context, userID, locationID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{userID, locationID}
	if _, ok := s.db.memberships[key]; !ok {
		return apperr.NotFound("membership")
	}
	delete(s.db.memberships, key)
	return nil
}

func (s memMemberships) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Membership{}
	for k, m := range s.db.memberships {
		if k.user == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s memMemberships) CountActive(_ context.Context, locationID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for k, m := range s.db.memberships {
		if k.location == locationID && m.Status == models.MembershipStatusActive {
			n++
		}
	}
	return n, nil
}

func (s memMemberships) ListTeam(_ context.Context, locationID uuid.UUID) ([]models.TeamMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.TeamMember{}
	for k, m := range s.db.memberships {
		if k.location != locationID {
			continue
		}
		u := s.db.users[k.user]
		out = append(out, models.TeamMember{
			UserID: u.ID, Name: u.Name, Email: u.Email, Role: m.Role, Status: m.Status, JoinedAt: m.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memPermissions struct{}

func (memPermissions) List(context.Context) ([]models.Permission, error) {
	var out []models.Permission
	id := 0
	for _, group := range authz.ListAll() {
		for _, p := range group.Permissions {
			id++
			p.ID = id
			out = append(out, p)
		}
	}
	return out, nil
}

type memGrants struct{ db *memDB }

func (s memGrants) Lookup(_ context.Context, locationID uuid.UUID, role models.Role, permission string) (authz.GrantState, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	granted, ok := s.db.grants[grantKey{locationID, role, permission}]
	switch {
	case !ok:
		return authz.GrantAbsent, nil
	case granted:
		return authz.GrantGranted, nil
	}
	return authz.GrantDenied, nil
}

func (s memGrants) Upsert(_ context.Context, g models.RolePermission) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.grants[grantKey{g.LocationID, g.Role, g.PermissionName}] = g.Granted
	return nil
}

func (s memGrants) ListForRole(_ context.Context, locationID uuid.UUID, role models.Role) ([]models.RolePermission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.RolePermission
	for k, v := range s.db.grants {
		if k.location == locationID && k.role == role {
			out = append(out, models.RolePermission{LocationID: k.location, Role: k.role, PermissionName: k.permission, Granted: v})
		}
	}
	return out, nil
}

type memInvitations struct{ db *memDB }

func (s memInvitations) Create(_ context.Context, inv models.Invitation) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.invitations {
		if other.InviteCode == inv.InviteCode {
			return nil, apperr.ErrInviteCodeTaken
		}
		if other.Status == models.InvitationStatusPending && other.LocationID == inv.LocationID && strings.EqualFold(other.Email, inv.Email) {
			return nil, apperr.New(apperr.ErrDuplicateConflict, "invitation already exists")
		}
	}
	inv.ID = uuid.New()
	inv.CreatedAt = s.db.tick()
	inv.UpdatedAt = inv.CreatedAt
	s.db.invitations[inv.ID] = inv
	return &inv, nil
}

func (s memInvitations) GetByID(_ context.Context, id uuid.UUID) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok {
		return nil, apperr.NotFound("invitation")
	}
	return &inv, nil
}

func (s memInvitations) GetByCode(_ context.Context, code string) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, inv := range s.db.invitations {
		if inv.InviteCode == code {
			return &inv, nil
		}
	}
	return nil, apperr.NotFound("invitation")
}

func (s memInvitations) GetByCodeForUpdate(ctx context.Context, code string) (*models.Invitation, error) {
	return s.GetByCode(ctx, code)
}

func (s memInvitations) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetByCode(ctx, code)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s memInvitations) FindPending(_ context.Context, locationID uuid.UUID, email string) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, inv := range s.db.invitations {
		if inv.LocationID == locationID && inv.Status == models.InvitationStatusPending && strings.EqualFold(inv.Email, email) {
			return &inv, nil
		}
	}
	return nil, apperr.NotFound("invitation")
}

func (s memInvitations) ListByLocations(_ context.Context, locationIDs []uuid.UUID, status *models.InvitationStatus) ([]models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range locationIDs {
		want[id] = true
	}
	out := []models.Invitation{}
	for _, inv := range s.db.invitations {
		if want[inv.LocationID] && (status == nil || inv.Status == *status) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memInvitations) MarkAccepted(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok || inv.Status != models.InvitationStatusPending {
		return apperr.ErrAlreadyAccepted
	}
	inv.Status = models.InvitationStatusAccepted
	inv.AcceptedAt = &at
	inv.AcceptedBy = &userID
	s.db.invitations[id] = inv
	return nil
}

func (s memInvitations) MarkExpired(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if ok && inv.Status == models.InvitationStatusPending {
		inv.Status = models.InvitationStatusExpired
		s.db.invitations[id] = inv
	}
	return nil
}

func (s memInvitations) Refresh(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok || inv.Status != models.InvitationStatusPending {
		return nil, apperr.NotFound("invitation")
	}
	inv.InviteCode = code
	inv.ExpiresAt = expiresAt
	s.db.invitations[id] = inv
	return &inv, nil
}

func (s memInvitations) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok || inv.Status != models.InvitationStatusPending {
		return apperr.NotFound("invitation")
	}
	delete(s.db.invitations, id)
	return nil
}

type memReports struct{ db *memDB }

func (s memReports) Create(_ context.Context, r models.Report) (*models.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = s.db.tick()
	r.UpdatedAt = r.CreatedAt
	s.db.reports[r.ID] = r
	return &r, nil
}

func (s memReports) GetByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.reports[id]
	if !ok {
		return nil, apperr.NotFound("report")
	}
	return &r, nil
}

func (s memReports) UpdateDraft(_ context.Context, r models.Report) (*models.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	existing, ok := s.db.reports[r.ID]
	if !ok || existing.Status != models.ReportStatusDraft {
		return nil, apperr.InvalidState("only draft reports can be edited")
	}
	r.Status = existing.Status
	s.db.reports[r.ID] = r
	return &r, nil
}

func (s memReports) Transition(_ context.Context, r models.Report, from models.ReportStatus) (*models.Report, error) {
	if err := s.db.check("report.transition"); err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	existing, ok := s.db.reports[r.ID]
	if !ok || existing.Status != from {
		return nil, apperr.New(apperr.ErrConflict, "report is no longer "+string(from))
	}
	existing.Status = r.Status
	existing.ShiftNotes = r.ShiftNotes
	existing.ApprovedBy = r.ApprovedBy
	existing.ApprovedAt = r.ApprovedAt
	s.db.reports[r.ID] = existing
	return &existing, nil
}

func (s memReports) DeleteDraft(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.reports[id]
	if !ok || r.Status != models.ReportStatusDraft {
		return apperr.InvalidState("cannot delete submitted or approved reports")
	}
	delete(s.db.reports, id)
	return nil
}

func (s memReports) List(_ context.Context, f models.ReportFilter) ([]models.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range f.LocationIDs {
		want[id] = true
	}
	out := []models.Report{}
	for _, r := range s.db.reports {
		switch {
		case !want[r.LocationID]:
		case f.UserID != nil && r.UserID != *f.UserID:
		case f.Status != nil && r.Status != *f.Status:
		case f.From != nil && r.ReportDate.Before(*f.From):
		case f.To != nil && r.ReportDate.After(*f.To):
		default:
			out = append(out, r)
		}
	}
	return out, nil
}

func (s memReports) Summary(_ context.Context, locationID uuid.UUID, from, to time.Time) (*models.LocationSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sum := &models.LocationSummary{
		LocationID: locationID, From: from, To: to,
		TotalSales: decimal.Zero, TotalTips: decimal.Zero, CashDifference: decimal.Zero,
	}
	for _, r := range s.db.reports {
		if r.LocationID != locationID || r.Status != models.ReportStatusApproved {
			continue
		}
		if r.ReportDate.Before(from) || r.ReportDate.After(to) {
			continue
		}
		sum.ReportCount++
		sum.TotalSales = sum.TotalSales.Add(r.TotalSales)
		sum.TotalTips = sum.TotalTips.Add(r.TotalTips)
		sum.CashDifference = sum.CashDifference.Add(r.CashDifference)
	}
	return sum, nil
}

type published struct {
	LocationID uuid.UUID
	Type       string
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []published
	revoked []revocation
}

type revocation struct {
	UserID     uuid.UUID
	LocationID uuid.UUID
}

func (p *recordingPublisher) RevokeLocation(userID, locationID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, revocation{userID, locationID})
}

func (p *recordingPublisher) Publish(locationID uuid.UUID, eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{locationID, eventType})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type sentMail struct {
	To       string
	Template string
	Data     map[string]interface{}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, templateKey string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, templateKey, data})
	return nil
}
