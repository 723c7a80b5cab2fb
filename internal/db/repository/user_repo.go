package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const userColumns = `id, name, email, password_hash, role, location_id, status, created_at, updated_at`

// UserRepository handles user data access
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user models.User
	if err := db.Conn(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		return nil, wrap("get user", "user", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user models.User
	if err := db.Conn(ctx, r.db).GetContext(ctx, &user, query, email); err != nil {
		return nil, wrap("get user by email", "user", err)
	}

	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user models.User) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, location_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	var created models.User
	err := db.Conn(ctx, r.db).GetContext(
		ctx,
		&created,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.LocationID,
		user.Status,
	)
	if err != nil {
		return nil, wrap("create user", "user", err)
	}

	return &created, nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return wrap("update password", "user", err)
	}

	return expectOne("update password", "user", result)
}

// SetCurrentLocation updates the denormalized current-location pointer and
// the account status together
func (r *UserRepository) SetCurrentLocation(ctx context.Context, id uuid.UUID, locationID *uuid.UUID, status models.UserStatus) error {
	query := `UPDATE users SET location_id = $1, status = $2, updated_at = $3 WHERE id = $4`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, locationID, status, time.Now(), id)
	if err != nil {
		return wrap("set current location", "user", err)
	}

	return expectOne("set current location", "user", result)
}

// SetLegacyRole writes users.role
func (r *UserRepository) SetLegacyRole(ctx context.Context, id uuid.UUID, role *models.Role) error {
	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, role, time.Now(), id)
	if err != nil {
		return wrap("set user role", "user", err)
	}

	return expectOne("set user role", "user", result)
}
