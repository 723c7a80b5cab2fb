package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// Rule is an instance-level check applied after the role checks pass.
type Rule int

const (
	RuleNone Rule = iota
	// RuleCreator requires the principal to be the resource's creator.
	RuleCreator
	// RuleCreatorOrSupervisor admits the creator and any owner or manager.
	RuleCreatorOrSupervisor
	// RuleCreatorOrLocationOwner admits the creator and the location owner.
	RuleCreatorOrLocationOwner
)

// Action is something a principal can attempt at a location.
type Action struct {
	Name string
	// Permission is the fine-grained key checked against the grant table.
	Permission string
	// Roles, when set, is a ceiling on the effective role. It is checked
	// before Permission.
	Roles []models.Role
	Rule  Rule
	// Founding actions are not scoped to an existing location.
	Founding bool
}

var supervisors = []models.Role{models.RoleOwner, models.RoleManager}

var (
	LocationCreate = Action{Name: "location.create", Founding: true}
	LocationView   = Action{Name: "location.view", Permission: LocationsView}
	LocationUpdate = Action{Name: "location.update", Permission: LocationsEdit}
	LocationDelete = Action{Name: "location.delete", Permission: LocationsDelete}
	// LocationSelect makes the location the principal's current one.
	LocationSelect = Action{Name: "location.select", Roles: models.Roles}
	LocationReport = Action{Name: "location.summary", Permission: AnalyticsView}

	TeamView         = Action{Name: "team.view", Permission: UsersView}
	MemberUpdateRole = Action{Name: "member.update_role", Permission: UsersEdit}
	MemberRemove     = Action{Name: "member.remove", Permission: UsersRemove}
	MemberAssign     = Action{Name: "member.assign", Permission: UsersAssignLocations}

	PermissionsManage = Action{Name: "permissions.manage", Permission: SettingsPermissions}

	ReportCreate = Action{Name: "report.create", Permission: ReportsCreate}
	ReportList   = Action{Name: "report.list", Permission: ReportsView}
	ReportView   = Action{Name: "report.view", Permission: ReportsView, Rule: RuleCreatorOrSupervisor}
	ReportEdit   = Action{Name: "report.edit", Permission: ReportsEdit, Rule: RuleCreator}
	ReportDelete = Action{Name: "report.delete", Permission: ReportsEdit, Rule: RuleCreator}
	ReportSubmit = Action{Name: "report.submit", Permission: ReportsSubmit, Rule: RuleCreator}
	ReportReview = Action{Name: "report.review", Permission: ReportsApprove, Roles: supervisors}

	InvitationCreate = Action{Name: "invitation.create", Permission: UsersInvite, Roles: supervisors}
	InvitationView   = Action{Name: "invitation.view", Permission: UsersView, Roles: supervisors}
	InvitationManage = Action{Name: "invitation.manage", Permission: UsersInvite, Roles: supervisors, Rule: RuleCreatorOrLocationOwner}
)

// Resource identifies what an action targets. CreatorID is the report author
// or the invitation sender.
type Resource struct {
	LocationID uuid.UUID
	CreatorID  *uuid.UUID
}

// At targets a location with no instance owner.
func At(locationID uuid.UUID) Resource {
	return Resource{LocationID: locationID}
}

// Owned targets an instance created by creatorID at a location.
func Owned(locationID, creatorID uuid.UUID) Resource {
	return Resource{LocationID: locationID, CreatorID: &creatorID}
}

// Decision is the outcome of CanPerform.
type Decision struct {
	Allowed bool
	Role    models.Role
	Reason  string
}

func allow(role models.Role) Decision { return Decision{Allowed: true, Role: role} }

func deny(role models.Role, reason string) Decision {
	return Decision{Role: role, Reason: reason}
}

// Err converts a denial into an AccessDenied error. Nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Denied(d.Reason)
}

type LocationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	CountOwnedBy(ctx context.Context, userID uuid.UUID) (int, error)
}

type MembershipReader interface {
	Get(ctx context.Context, userID, locationID uuid.UUID) (*models.Membership, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type Options struct {
	// LegacyRoleFallback consults users.role when the principal has no
	// membership at their current location.
	LegacyRoleFallback   bool
	MaxLocationsPerOwner int
}

// Observer receives every decision. Used for metrics.
type Observer func(action Action, d Decision)

// Engine makes every access decision.
type Engine struct {
	locations   LocationReader
	memberships MembershipReader
	grants      *GrantStore
	opts        Options
	observers   []Observer
}

func NewEngine(locations LocationReader, memberships MembershipReader, grants *GrantStore, opts Options) *Engine {
	return &Engine{
		locations:   locations,
		memberships: memberships,
		grants:      grants,
		opts:        opts,
	}
}

// Observe registers fn to receive decisions.
func (e *Engine) Observe(fn Observer) {
	e.observers = append(e.observers, fn)
}

// Authorize is CanPerform folded into a single error.
func (e *Engine) Authorize(ctx context.Context, principal *models.User, action Action, res Resource) error {
	d, err := e.CanPerform(ctx, principal, action, res)
	if err != nil {
		return err
	}
	return d.Err()
}

// CanPerform decides whether principal may perform action on res. An error
// is returned only when the decision could not be made, e.g. the target
// location does not exist.
func (e *Engine) CanPerform(ctx context.Context, principal *models.User, action Action, res Resource) (Decision, error) {
	d, err := e.decide(ctx, principal, action, res)
	if err != nil {
		return Decision{}, err
	}

	for _, fn := range e.observers {
		fn(action, d)
	}
	if !d.Allowed {
		ev := log.Debug().Str("action", action.Name).Str("reason", d.Reason)
		if principal != nil {
			ev = ev.Str("user_id", principal.ID.String())
		}
		ev.Str("location_id", res.LocationID.String()).Msg("access denied")
	}
	return d, nil
}

func (e *Engine) decide(ctx context.Context, principal *models.User, action Action, res Resource) (Decision, error) {
	if principal == nil {
		return deny("", "authentication required"), nil
	}
	if principal.Status == models.UserStatusInactive {
		return deny("", "account is inactive"), nil
	}

	if action.Founding {
		return e.decideFounding(ctx, principal)
	}

	loc, err := e.locations.GetByID(ctx, res.LocationID)
	if err != nil {
		return Decision{}, err
	}

	role, err := e.effectiveRole(ctx, principal, loc)
	if err != nil {
		return Decision{}, err
	}
	if role == "" {
		return deny("", "you do not have access to this location"), nil
	}

	if len(action.Roles) > 0 && !hasRole(action.Roles, role) {
		return deny(role, fmt.Sprintf("role %s may not perform %s", role, action.Name)), nil
	}

	if action.Permission != "" {
		granted, err := e.grants.IsGranted(ctx, loc.ID, role, action.Permission)
		if err != nil {
			return Decision{}, err
		}
		if !granted {
			return deny(role, "missing permission "+action.Permission), nil
		}
	} else if len(action.Roles) == 0 {
		return deny(role, "action "+action.Name+" has no access rule"), nil
	}

	return e.checkInstance(principal, loc, role, action, res), nil
}

func (e *Engine) decideFounding(ctx context.Context, principal *models.User) (Decision, error) {
	owned, err := e.locations.CountOwnedBy(ctx, principal.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count owned locations: %w", err)
	}

	eligible := owned > 0 || (principal.Role != nil && *principal.Role == models.RoleOwner)
	if !eligible {
		memberships, err := e.memberships.CountForUser(ctx, principal.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to count memberships: %w", err)
		}
		// A user with no memberships is founding their first location.
		eligible = memberships == 0
	}
	if !eligible {
		return deny("", "only owners can create locations"), nil
	}

	if e.opts.MaxLocationsPerOwner > 0 && owned >= e.opts.MaxLocationsPerOwner {
		return deny(models.RoleOwner, fmt.Sprintf("location limit of %d reached", e.opts.MaxLocationsPerOwner)), nil
	}
	return allow(models.RoleOwner), nil
}

func (e *Engine) checkInstance(principal *models.User, loc *models.Location, role models.Role, action Action, res Resource) Decision {
	isCreator := res.CreatorID != nil && *res.CreatorID == principal.ID

	switch action.Rule {
	case RuleCreator:
		if !isCreator {
			return deny(role, "only the creator may perform "+action.Name)
		}
	case RuleCreatorOrSupervisor:
		if !isCreator && !hasRole(supervisors, role) {
			return deny(role, "you can only access your own records")
		}
	case RuleCreatorOrLocationOwner:
		if !isCreator && loc.OwnerID != principal.ID {
			return deny(role, "only the sender or the location owner may perform "+action.Name)
		}
	}
	return allow(role)
}

// EffectiveRole resolves the role principal acts with at a location. An
// empty role means no access.
func (e *Engine) EffectiveRole(ctx context.Context, principal *models.User, locationID uuid.UUID) (models.Role, error) {
	loc, err := e.locations.GetByID(ctx, locationID)
	if err != nil {
		return "", err
	}
	return e.effectiveRole(ctx, principal, loc)
}

func (e *Engine) effectiveRole(ctx context.Context, principal *models.User, loc *models.Location) (models.Role, error) {
	if loc.OwnerID == principal.ID {
		return models.RoleOwner, nil
	}

	m, err := e.memberships.Get(ctx, principal.ID, loc.ID)
	switch {
	case err == nil:
		if m.Status == models.MembershipStatusActive {
			return m.Role, nil
		}
		return "", nil
	case !errors.Is(err, apperr.ErrNotFound):
		return "", fmt.Errorf("failed to load membership: %w", err)
	}

	return e.legacyRole(principal, loc), nil
}

// legacyRole is the deprecated single-location path. It only applies when no
// membership row exists at all and never grants owner.
func (e *Engine) legacyRole(principal *models.User, loc *models.Location) models.Role {
	if !e.opts.LegacyRoleFallback || principal.Role == nil {
		return ""
	}
	if principal.LocationID == nil || *principal.LocationID != loc.ID {
		return ""
	}
	role := *principal.Role
	if role == models.RoleOwner || !role.Valid() {
		return ""
	}

	log.Warn().
		Str("user_id", principal.ID.String()).
		Str("location_id", loc.ID.String()).
		Str("role", string(role)).
		Msg("authorized via legacy users.role; reconcile into location_user")
	return role
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
