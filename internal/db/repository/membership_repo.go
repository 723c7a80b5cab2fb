package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const membershipColumns = `user_id, location_id, role, status, created_at, updated_at`

// MembershipRepository handles the location_user table
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Get retrieves the membership for a (user, location) pair
func (r *MembershipRepository) Get(ctx context.Context, userID, locationID uuid.UUID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM location_user WHERE user_id = $1 AND location_id = $2`

	var m models.Membership
	if err := db.Conn(ctx, r.db).GetContext(ctx, &m, query, userID, locationID); err != nil {
		return nil, wrap("get membership", "membership", err)
	}

	return &m, nil
}

// Create inserts a membership. An existing pair fails with
// ErrDuplicateMembership.
func (r *MembershipRepository) Create(ctx context.Context, m models.Membership) error {
	query := `
		INSERT INTO location_user (user_id, location_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, location_id) DO NOTHING
	`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, m.UserID, m.LocationID, m.Role, m.Status)
	if err != nil {
		return wrap("create membership", "membership", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrap("create membership", "membership", err)
	}
	if rowsAffected == 0 {
		return apperr.ErrDuplicateMembership
	}
	return nil
}

// Upsert creates the membership or overwrites its role and status
func (r *MembershipRepository) Upsert(ctx context.Context, m models.Membership) error {
	query := `
		INSERT INTO location_user (user_id, location_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, location_id)
		DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, updated_at = NOW()
	`

	if _, err := db.Conn(ctx, r.db).ExecContext(ctx, query, m.UserID, m.LocationID, m.Role, m.Status); err != nil {
		return wrap("upsert membership", "membership", err)
	}
	return nil
}

// UpdateRole changes the role of an existing membership
func (r *MembershipRepository) UpdateRole(ctx context.Context, userID, locationID uuid.UUID, role models.Role) error {
	query := `UPDATE location_user SET role = $1, updated_at = $2 WHERE user_id = $3 AND location_id = $4`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, role, time.Now(), userID, locationID)
	if err != nil {
		return wrap("update membership role", "membership", err)
	}

	return expectOne("update membership role", "membership", result)
}

// Delete removes a membership
func (r *MembershipRepository) Delete(ctx context.Context, userID, locationID uuid.UUID) error {
	query := `DELETE FROM location_user WHERE user_id = $1 AND location_id = $2`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, userID, locationID)
	if err != nil {
		return wrap("delete membership", "membership", err)
	}

	return expectOne("delete membership", "membership", result)
}

// ListForUser returns all memberships of a user, oldest first
func (r *MembershipRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM location_user WHERE user_id = $1 ORDER BY created_at ASC`

	memberships := []models.Membership{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &memberships, query, userID); err != nil {
		return nil, wrap("list memberships", "membership", err)
	}

	return memberships, nil
}

// CountForUser counts memberships of a user in any status
func (r *MembershipRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := db.Conn(ctx, r.db).GetContext(ctx, &n, `SELECT COUNT(*) FROM location_user WHERE user_id = $1`, userID); err != nil {
		return 0, wrap("count memberships", "membership", err)
	}
	return n, nil
}

// CountActive counts active memberships at a location
func (r *MembershipRepository) CountActive(ctx context.Context, locationID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM location_user WHERE location_id = $1 AND status = 'active'`

	var n int
	if err := db.Conn(ctx, r.db).GetContext(ctx, &n, query, locationID); err != nil {
		return 0, wrap("count location members", "membership", err)
	}
	return n, nil
}

// ListTeam returns the members of a location joined with their user records
func (r *MembershipRepository) ListTeam(ctx context.Context, locationID uuid.UUID) ([]models.TeamMember, error) {
	query := `
		SELECT u.id AS user_id, u.name, u.email, lu.role, lu.status, lu.created_at
		FROM location_user lu
		JOIN users u ON u.id = lu.user_id
		WHERE lu.location_id = $1
		ORDER BY lu.role ASC, u.name ASC
	`

	members := []models.TeamMember{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &members, query, locationID); err != nil {
		return nil, wrap("list team", "membership", err)
	}

	return members, nil
}
