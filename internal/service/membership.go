package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// MembershipService maintains who belongs to which location and in what role
type MembershipService struct {
	repos     *repository.Repositories
	engine    *authz.Engine
	publisher Publisher
}

// NewMembershipService creates a new membership service
func NewMembershipService(repos *repository.Repositories, engine *authz.Engine, publisher Publisher) *MembershipService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &MembershipService{
		repos:     repos,
		engine:    engine,
		publisher: publisher,
	}
}

// Attach adds a user to a location. An existing pair fails with
// ErrDuplicateMembership.
func (s *MembershipService) Attach(ctx context.Context, userID, locationID uuid.UUID, role models.Role, status models.MembershipStatus) error {
	return s.repos.Membership.Create(ctx, models.Membership{
		UserID:     userID,
		LocationID: locationID,
		Role:       role,
		Status:     status,
	})
}

// UpdateRole changes an existing membership's role
func (s *MembershipService) UpdateRole(ctx context.Context, userID, locationID uuid.UUID, role models.Role) error {
	return s.repos.Membership.UpdateRole(ctx, userID, locationID, role)
}

// Detach removes a membership and repoints or clears the user's current
// location. A user left with no location goes back to pending.
func (s *MembershipService) Detach(ctx context.Context, userID, locationID uuid.UUID) error {
	return s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Membership.Delete(ctx, userID, locationID); err != nil {
			return err
		}

		user, err := s.repos.User.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		remaining, err := s.repos.Location.ListForUser(ctx, userID)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			if err := s.repos.User.SetCurrentLocation(ctx, userID, nil, models.UserStatusPending); err != nil {
				return err
			}
			return s.repos.User.SetLegacyRole(ctx, userID, nil)
		}

		if user.LocationID != nil && *user.LocationID == locationID {
			next := remaining[0].ID
			return s.repos.User.SetCurrentLocation(ctx, userID, &next, user.Status)
		}
		return nil
	})
}

// RoleOf returns the membership role of a user at a location, if any
func (s *MembershipService) RoleOf(ctx context.Context, userID, locationID uuid.UUID) (models.Role, bool, error) {
	m, err := s.repos.Membership.Get(ctx, userID, locationID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Role, true, nil
}

// IsOwner reports whether userID owns the location
func (s *MembershipService) IsOwner(ctx context.Context, userID, locationID uuid.UUID) (bool, error) {
	loc, err := s.repos.Location.GetByID(ctx, locationID)
	if err != nil {
		return false, err
	}
	return loc.OwnerID == userID, nil
}

// GetTeam lists a location's owner, members and, for supervisors, the
// invitations still pending
func (s *MembershipService) GetTeam(ctx context.Context, principal *models.User, locationID uuid.UUID) (*models.Team, error) {
	if err := s.engine.Authorize(ctx, principal, authz.TeamView, authz.At(locationID)); err != nil {
		return nil, err
	}

	loc, err := s.repos.Location.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}

	owner, err := s.repos.User.GetByID(ctx, loc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	members, err := s.repos.Membership.ListTeam(ctx, locationID)
	if err != nil {
		return nil, err
	}

	team := &models.Team{Location: *loc, Owner: owner, Members: members}

	d, err := s.engine.CanPerform(ctx, principal, authz.InvitationView, authz.At(locationID))
	if err != nil {
		return nil, err
	}
	if d.Allowed {
		pending := models.InvitationStatusPending
		team.Invitations, err = s.repos.Invitation.ListByLocations(ctx, []uuid.UUID{locationID}, &pending)
		if err != nil {
			return nil, err
		}
	}

	return team, nil
}

// checkManageable loads the target's membership and applies the rules shared
// by role changes and removals: the owner is never managed through
// memberships, and managers can only manage employees.
func (s *MembershipService) checkManageable(ctx context.Context, actorRole models.Role, locationID, userID uuid.UUID) (*models.Membership, error) {
	isOwner, err := s.IsOwner(ctx, userID, locationID)
	if err != nil {
		return nil, err
	}
	if isOwner {
		return nil, apperr.Denied("the location owner cannot be changed or removed")
	}

	target, err := s.repos.Membership.Get(ctx, userID, locationID)
	if err != nil {
		return nil, err
	}

	if actorRole == models.RoleManager && target.Role != models.RoleEmployee {
		return nil, apperr.Denied("managers can only manage employees")
	}
	return target, nil
}

// ChangeRole changes a member's role at a location
func (s *MembershipService) ChangeRole(ctx context.Context, principal *models.User, locationID, userID uuid.UUID, req models.MemberRoleRequest) (*models.Membership, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	d, err := s.engine.CanPerform(ctx, principal, authz.MemberUpdateRole, authz.At(locationID))
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	target, err := s.checkManageable(ctx, d.Role, locationID, userID)
	if err != nil {
		return nil, err
	}
	if d.Role == models.RoleManager && req.Role != models.RoleEmployee {
		return nil, apperr.Denied("managers can only manage employees")
	}

	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.UpdateRole(ctx, userID, locationID, req.Role); err != nil {
			return err
		}

		user, err := s.repos.User.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.LocationID != nil && *user.LocationID == locationID {
			return s.repos.User.SetLegacyRole(ctx, userID, &req.Role)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	target.Role = req.Role
	s.publisher.Publish(locationID, EventMembershipUpdated, target)
	return target, nil
}

// RemoveMember detaches a member from a location
func (s *MembershipService) RemoveMember(ctx context.Context, principal *models.User, locationID, userID uuid.UUID) error {
	d, err := s.engine.CanPerform(ctx, principal, authz.MemberRemove, authz.At(locationID))
	if err != nil {
		return err
	}
	if err := d.Err(); err != nil {
		return err
	}

	if userID == principal.ID {
		return apperr.InvalidState("you cannot remove yourself from a location")
	}

	target, err := s.checkManageable(ctx, d.Role, locationID, userID)
	if err != nil {
		return err
	}

	if err := s.Detach(ctx, userID, locationID); err != nil {
		return err
	}

	log.Info().
		Str("location_id", locationID.String()).
		Str("user_id", userID.String()).
		Str("removed_by", principal.ID.String()).
		Msg("member removed")

	s.publisher.Publish(locationID, EventMembershipRemoved, target)
	if r, ok := s.publisher.(SubscriptionRevoker); ok {
		r.RevokeLocation(userID, locationID)
	}
	return nil
}

// AssignLocations places a user at several locations at once. Every target
// location is authorized before anything is written.
func (s *MembershipService) AssignLocations(ctx context.Context, principal *models.User, userID uuid.UUID, req models.AssignLocationsRequest) ([]models.Membership, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	actorRoles := make(map[uuid.UUID]models.Role, len(req.Assignments))
	for _, a := range req.Assignments {
		if _, ok := actorRoles[a.LocationID]; ok {
			return nil, apperr.Invalid("location_assignments", "unique")
		}

		d, err := s.engine.CanPerform(ctx, principal, authz.MemberAssign, authz.At(a.LocationID))
		if err != nil {
			return nil, err
		}
		if err := d.Err(); err != nil {
			return nil, err
		}
		if d.Role == models.RoleManager && a.Role != models.RoleEmployee {
			return nil, apperr.Denied("managers can only manage employees")
		}
		actorRoles[a.LocationID] = d.Role
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var assigned []models.Membership
	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, a := range req.Assignments {
			isOwner, err := s.IsOwner(ctx, userID, a.LocationID)
			if err != nil {
				return err
			}
			if isOwner {
				return apperr.InvalidState("user already owns location %s", a.LocationID)
			}

			// Reassigning an existing member is a role change
			existing, err := s.repos.Membership.Get(ctx, userID, a.LocationID)
			switch {
			case apperr.IsNotFound(err):
			case err != nil:
				return err
			case actorRoles[a.LocationID] == models.RoleManager && existing.Role != models.RoleEmployee:
				return apperr.Denied("managers can only manage employees")
			}

			m := models.Membership{
				UserID:     userID,
				LocationID: a.LocationID,
				Role:       a.Role,
				Status:     models.MembershipStatusActive,
			}
			if err := s.repos.Membership.Upsert(ctx, m); err != nil {
				return err
			}
			assigned = append(assigned, m)
		}

		if user.LocationID == nil {
			first := req.Assignments[0]
			if err := s.repos.User.SetCurrentLocation(ctx, userID, &first.LocationID, models.UserStatusActive); err != nil {
				return err
			}
			return s.repos.User.SetLegacyRole(ctx, userID, &first.Role)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, m := range assigned {
		s.publisher.Publish(m.LocationID, EventMembershipCreated, m)
	}
	return assigned, nil
}

// SelectLocation switches the principal's current location
func (s *MembershipService) SelectLocation(ctx context.Context, principal *models.User, req models.CurrentLocationRequest) (*models.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	d, err := s.engine.CanPerform(ctx, principal, authz.LocationSelect, authz.At(req.LocationID))
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	status := principal.Status
	if status == models.UserStatusPending {
		status = models.UserStatusActive
	}

	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repos.User.SetCurrentLocation(ctx, principal.ID, &req.LocationID, status); err != nil {
			return err
		}
		return s.repos.User.SetLegacyRole(ctx, principal.ID, &d.Role)
	})
	if err != nil {
		return nil, err
	}

	return s.repos.User.GetByID(ctx, principal.ID)
}
