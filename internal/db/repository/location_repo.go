package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const locationColumns = `id, name, address, phone, owner_id, is_active, created_at, updated_at`

// LocationRepository handles location data access
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	var loc models.Location
	if err := db.Conn(ctx, r.db).GetContext(ctx, &loc, query, id); err != nil {
		return nil, wrap("get location", "location", err)
	}

	return &loc, nil
}

// ListForUser returns locations the user owns or holds an active membership at
func (r *LocationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Location, error) {
	query := `
		SELECT l.id, l.name, l.address, l.phone, l.owner_id, l.is_active, l.created_at, l.updated_at
		FROM locations l
		WHERE l.owner_id = $1
		   OR EXISTS (
				SELECT 1 FROM location_user lu
				WHERE lu.location_id = l.id AND lu.user_id = $1 AND lu.status = 'active'
		   )
		ORDER BY l.name ASC
	`

	locations := []models.Location{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &locations, query, userID); err != nil {
		return nil, wrap("list locations", "location", err)
	}

	return locations, nil
}

// CountOwnedBy counts locations owned by a user
func (r *LocationRepository) CountOwnedBy(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := db.Conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM locations WHERE owner_id = $1`, userID); err != nil {
		return 0, wrap("count owned locations", "location", err)
	}
	return n, nil
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, loc models.Location) (*models.Location, error) {
	query := `
		INSERT INTO locations (name, address, phone, owner_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + locationColumns

	var created models.Location
	err := db.Conn(ctx, r.db).GetContext(ctx, &created, query, loc.Name, loc.Address, loc.Phone, loc.OwnerID, loc.IsActive)
	if err != nil {
		return nil, wrap("create location", "location", err)
	}

	return &created, nil
}

// Update updates a location's details
func (r *LocationRepository) Update(ctx context.Context, loc models.Location) (*models.Location, error) {
	query := `
		UPDATE locations
		SET name = $1, address = $2, phone = $3, is_active = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + locationColumns

	var updated models.Location
	err := db.Conn(ctx, r.db).GetContext(ctx, &updated, query, loc.Name, loc.Address, loc.Phone, loc.IsActive, time.Now(), loc.ID)
	if err != nil {
		return nil, wrap("update location", "location", err)
	}

	return &updated, nil
}

// InUse reports whether any membership, non-owner user pointer or report
// still references the location
func (r *LocationRepository) InUse(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM location_user WHERE location_id = $1)
		    OR EXISTS (
				SELECT 1 FROM users u JOIN locations l ON l.id = u.location_id
				WHERE u.location_id = $1 AND u.id <> l.owner_id
		    )
		    OR EXISTS (SELECT 1 FROM reports WHERE location_id = $1)
	`

	var inUse bool
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inUse, query, id); err != nil {
		return false, wrap("check location references", "location", err)
	}
	return inUse, nil
}

// Delete deletes a location
func (r *LocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return wrap("delete location", "location", err)
	}

	return expectOne("delete location", "location", result)
}
