package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 10
)

// InvitationConfig holds invitation settings
type InvitationConfig struct {
	TTL       time.Duration
	AcceptURL string
}

// InvitationService drives the invitation lifecycle
type InvitationService struct {
	repos     *repository.Repositories
	engine    *authz.Engine
	mailer    Mailer
	publisher Publisher
	cfg       InvitationConfig
	now       func() time.Time
	newCode   func() (string, error)
}

// NewInvitationService creates a new invitation service
func NewInvitationService(repos *repository.Repositories, engine *authz.Engine, mailer Mailer, publisher Publisher, cfg InvitationConfig) *InvitationService {
	if mailer == nil {
		mailer = noopMailer{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if cfg.TTL == 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &InvitationService{
		repos:     repos,
		engine:    engine,
		mailer:    mailer,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		newCode:   randomInviteCode,
	}
}

func randomInviteCode() (string, error) {
	base := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// uniqueCode draws codes until one is not in use
func (s *InvitationService) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}

		exists, err := s.repos.Invitation.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.New(apperr.ErrConflict, "could not allocate a unique invite code")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateInvitation invites an email address to a location
func (s *InvitationService) CreateInvitation(ctx context.Context, principal *models.User, req models.InvitationRequest) (*models.Invitation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(ctx, principal, authz.InvitationCreate, authz.At(req.LocationID)); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)

	var (
		loc     *models.Location
		invitee *models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loc, err = s.repos.Location.GetByID(gctx, req.LocationID)
		return err
	})
	g.Go(func() error {
		var err error
		invitee, err = s.repos.User.GetByEmail(gctx, email)
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if invitee != nil {
		if invitee.ID == loc.OwnerID {
			return nil, apperr.ErrAlreadyMember
		}
		if _, err := s.repos.Membership.Get(ctx, invitee.ID, loc.ID); err == nil {
			return nil, apperr.ErrAlreadyMember
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
	}

	var created *models.Invitation
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repos.Invitation.FindPending(ctx, loc.ID, email)
		switch {
		case err == nil && !existing.IsExpired(s.now()):
			return apperr.ErrDuplicatePending
		case err == nil:
			if err := s.repos.Invitation.MarkExpired(ctx, existing.ID); err != nil {
				return err
			}
		case !apperr.IsNotFound(err):
			return err
		}

		for attempt := 1; ; attempt++ {
			code, err := s.uniqueCode(ctx)
			if err != nil {
				return err
			}

			created, err = s.repos.Invitation.Create(ctx, models.Invitation{
				LocationID: loc.ID,
				InvitedBy:  principal.ID,
				Email:      email,
				Role:       req.Role,
				InviteCode: code,
				ExpiresAt:  s.now().Add(s.cfg.TTL),
				Status:     models.InvitationStatusPending,
			})
			switch {
			case errors.Is(err, apperr.ErrInviteCodeTaken) && attempt < inviteCodeAttempts:
				// another invite claimed the code after the existence check
				continue
			case errors.Is(err, apperr.ErrDuplicateConflict):
				// lost a race with a concurrent invite for the same email
				return apperr.ErrDuplicatePending
			}
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	created.Location = loc
	s.sendInvitation(ctx, principal, created)
	s.publisher.Publish(loc.ID, EventInvitationCreated, created)

	log.Info().
		Str("invitation_id", created.ID.String()).
		Str("location_id", loc.ID.String()).
		Str("invited_by", principal.ID.String()).
		Msg("invitation created")

	return created, nil
}

// sendInvitation hands the invitation email to the mailer. Delivery failures
// are logged and never undo the invitation.
func (s *InvitationService) sendInvitation(ctx context.Context, inviter *models.User, inv *models.Invitation) {
	locationName := ""
	if inv.Location != nil {
		locationName = inv.Location.Name
	}

	data := map[string]interface{}{
		"InviterName":  inviter.Name,
		"LocationName": locationName,
		"Role":         string(inv.Role),
		"InviteCode":   inv.InviteCode,
		"AcceptURL":    strings.TrimRight(s.cfg.AcceptURL, "/") + "/" + inv.InviteCode,
		"ExpiresAt":    inv.ExpiresAt.Format("January 2, 2006"),
	}

	if err := s.mailer.Send(ctx, inv.Email, TemplateInvitation, data); err != nil {
		log.Error().Err(err).Str("invitation_id", inv.ID.String()).Msg("failed to send invitation email")
	}
}

// withEffectiveStatus reports lapsed pending invitations as expired
func (s *InvitationService) withEffectiveStatus(inv *models.Invitation) *models.Invitation {
	inv.Status = inv.EffectiveStatus(s.now())
	return inv
}

// GetInvitations lists invitations at one location, or at every location
// where the principal may see them
func (s *InvitationService) GetInvitations(ctx context.Context, principal *models.User, locationID *uuid.UUID, status *models.InvitationStatus) ([]models.Invitation, error) {
	var locationIDs []uuid.UUID
	if locationID != nil {
		if err := s.engine.Authorize(ctx, principal, authz.InvitationView, authz.At(*locationID)); err != nil {
			return nil, err
		}
		locationIDs = []uuid.UUID{*locationID}
	} else {
		locations, err := s.repos.Location.ListForUser(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		for _, loc := range locations {
			d, err := s.engine.CanPerform(ctx, principal, authz.InvitationView, authz.At(loc.ID))
			if err != nil {
				return nil, err
			}
			if d.Allowed {
				locationIDs = append(locationIDs, loc.ID)
			}
		}
	}

	// expiry is computed, so filter by effective status after loading
	invitations, err := s.repos.Invitation.ListByLocations(ctx, locationIDs, nil)
	if err != nil {
		return nil, err
	}

	out := make([]models.Invitation, 0, len(invitations))
	for i := range invitations {
		inv := s.withEffectiveStatus(&invitations[i])
		if status == nil || inv.Status == *status {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// GetInvitation retrieves one invitation
func (s *InvitationService) GetInvitation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Invitation, error) {
	inv, err := s.repos.Invitation.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.InvitationView, authz.At(inv.LocationID)); err != nil {
		return nil, err
	}

	return s.withEffectiveStatus(inv), nil
}

// GetByCode returns the public view of an invitation for its code holder
func (s *InvitationService) GetByCode(ctx context.Context, code string) (*models.PublicInvitation, error) {
	inv, err := s.repos.Invitation.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}

	loc, err := s.repos.Location.GetByID(ctx, inv.LocationID)
	if err != nil {
		return nil, err
	}

	return &models.PublicInvitation{
		LocationName: loc.Name,
		Email:        inv.Email,
		Role:         inv.Role,
		Status:       inv.EffectiveStatus(s.now()),
		ExpiresAt:    inv.ExpiresAt,
	}, nil
}

// AcceptInvitation joins the principal to the invitation's location. The
// invitation update and the membership write commit together.
func (s *InvitationService) AcceptInvitation(ctx context.Context, principal *models.User, code string) (*models.Membership, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var (
		membership *models.Membership
		accepted   *models.Invitation
	)
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.repos.Invitation.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case inv.Status == models.InvitationStatusAccepted:
			return apperr.ErrAlreadyAccepted
		case !inv.CanBeAccepted(now):
			return apperr.ErrInvitationExpired
		}

		if !strings.EqualFold(strings.TrimSpace(principal.Email), inv.Email) {
			return apperr.ErrEmailMismatch
		}
		if principal.LocationID != nil {
			return apperr.ErrAlreadyAssigned
		}

		if err := s.repos.Invitation.MarkAccepted(ctx, inv.ID, principal.ID, now); err != nil {
			return err
		}

		membership = &models.Membership{
			UserID:     principal.ID,
			LocationID: inv.LocationID,
			Role:       inv.Role,
			Status:     models.MembershipStatusActive,
		}
		if err := s.repos.Membership.Upsert(ctx, *membership); err != nil {
			return err
		}

		if err := s.repos.User.SetCurrentLocation(ctx, principal.ID, &inv.LocationID, models.UserStatusActive); err != nil {
			return err
		}
		if err := s.repos.User.SetLegacyRole(ctx, principal.ID, &inv.Role); err != nil {
			return err
		}

		inv.Status = models.InvitationStatusAccepted
		inv.AcceptedAt = &now
		inv.AcceptedBy = &principal.ID
		accepted = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(accepted.LocationID, EventInvitationAccepted, accepted)
	s.publisher.Publish(accepted.LocationID, EventMembershipCreated, membership)

	log.Info().
		Str("invitation_id", accepted.ID.String()).
		Str("user_id", principal.ID.String()).
		Msg("invitation accepted")

	return membership, nil
}

// loadManageable loads a pending invitation the principal may resend or
// cancel
func (s *InvitationService) loadManageable(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Invitation, error) {
	inv, err := s.repos.Invitation.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.InvitationManage, authz.Owned(inv.LocationID, inv.InvitedBy)); err != nil {
		return nil, err
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, apperr.InvalidState("invitation is %s", inv.Status)
	}
	return inv, nil
}

// ResendInvitation issues a fresh code and expiry and emails it again
func (s *InvitationService) ResendInvitation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Invitation, error) {
	inv, err := s.loadManageable(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	var refreshed *models.Invitation
	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		code, err := s.uniqueCode(ctx)
		if err != nil {
			return err
		}

		refreshed, err = s.repos.Invitation.Refresh(ctx, inv.ID, code, s.now().Add(s.cfg.TTL))
		if apperr.IsNotFound(err) {
			return apperr.ErrAlreadyAccepted
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	loc, err := s.repos.Location.GetByID(ctx, refreshed.LocationID)
	if err != nil {
		return nil, err
	}
	refreshed.Location = loc

	s.sendInvitation(ctx, principal, refreshed)
	s.publisher.Publish(refreshed.LocationID, EventInvitationResent, refreshed)
	return refreshed, nil
}

// CancelInvitation deletes a pending invitation
func (s *InvitationService) CancelInvitation(ctx context.Context, principal *models.User, id uuid.UUID) error {
	inv, err := s.loadManageable(ctx, principal, id)
	if err != nil {
		return err
	}

	if err := s.repos.Invitation.Delete(ctx, inv.ID); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.ErrAlreadyAccepted
		}
		return err
	}

	s.publisher.Publish(inv.LocationID, EventInvitationCanceled, map[string]uuid.UUID{"id": inv.ID})
	return nil
}
