package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// LocationService handles location lifecycle and reporting summaries
type LocationService struct {
	repos  *repository.Repositories
	engine *authz.Engine
	grants *authz.GrantStore
}

// NewLocationService creates a new location service
func NewLocationService(repos *repository.Repositories, engine *authz.Engine, grants *authz.GrantStore) *LocationService {
	return &LocationService{
		repos:  repos,
		engine: engine,
		grants: grants,
	}
}

// GetLocations lists the locations the principal owns or belongs to
func (s *LocationService) GetLocations(ctx context.Context, principal *models.User) ([]models.Location, error) {
	return s.repos.Location.ListForUser(ctx, principal.ID)
}

// GetLocation retrieves a location with its owner
func (s *LocationService) GetLocation(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Location, error) {
	if err := s.engine.Authorize(ctx, principal, authz.LocationView, authz.At(id)); err != nil {
		return nil, err
	}

	loc, err := s.repos.Location.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.repos.User.GetByID(ctx, loc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	loc.Owner = owner

	return loc, nil
}

// CreateLocation founds a location owned by the principal, seeds its grant
// table and makes it the principal's current location if they have none
func (s *LocationService) CreateLocation(ctx context.Context, principal *models.User, req models.LocationRequest) (*models.Location, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(ctx, principal, authz.LocationCreate, authz.Resource{}); err != nil {
		return nil, err
	}

	var created *models.Location
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repos.Location.Create(ctx, models.Location{
			Name:     req.Name,
			Address:  req.Address,
			Phone:    req.Phone,
			OwnerID:  principal.ID,
			IsActive: true,
		})
		if err != nil {
			return err
		}

		if err := s.grants.SeedDefaults(ctx, created.ID); err != nil {
			return err
		}

		current := principal.LocationID
		if current == nil {
			current = &created.ID
		}
		if err := s.repos.User.SetCurrentLocation(ctx, principal.ID, current, models.UserStatusActive); err != nil {
			return err
		}

		if principal.Role == nil {
			owner := models.RoleOwner
			return s.repos.User.SetLegacyRole(ctx, principal.ID, &owner)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("location_id", created.ID.String()).
		Str("owner_id", principal.ID.String()).
		Msg("location created")

	return created, nil
}

// UpdateLocation updates a location's details
func (s *LocationService) UpdateLocation(ctx context.Context, principal *models.User, id uuid.UUID, req models.LocationUpdateRequest) (*models.Location, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(ctx, principal, authz.LocationUpdate, authz.At(id)); err != nil {
		return nil, err
	}

	loc, err := s.repos.Location.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	loc.Name = req.Name
	loc.Address = req.Address
	loc.Phone = req.Phone
	if req.IsActive != nil {
		loc.IsActive = *req.IsActive
	}

	return s.repos.Location.Update(ctx, *loc)
}

// DeleteLocation deletes a location that nothing references any more
func (s *LocationService) DeleteLocation(ctx context.Context, principal *models.User, id uuid.UUID) error {
	if err := s.engine.Authorize(ctx, principal, authz.LocationDelete, authz.At(id)); err != nil {
		return err
	}

	return s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		inUse, err := s.repos.Location.InUse(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.ErrLocationInUse
		}

		if err := s.repos.Location.Delete(ctx, id); err != nil {
			return err
		}

		log.Info().Str("location_id", id.String()).Msg("location deleted")
		return nil
	})
}

// GetSummary totals approved reports at a location. Zero bounds default to
// the last 30 days.
func (s *LocationService) GetSummary(ctx context.Context, principal *models.User, id uuid.UUID, from, to time.Time) (*models.LocationSummary, error) {
	if err := s.engine.Authorize(ctx, principal, authz.LocationReport, authz.At(id)); err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, apperr.Invalid("from", "ltefield=to")
	}

	return s.repos.Report.Summary(ctx, id, from, to)
}
