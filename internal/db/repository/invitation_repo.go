package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const invitationColumns = `id, location_id, invited_by, email, role, invite_code, expires_at, status,
	accepted_at, accepted_by, created_at, updated_at`

// InvitationRepository handles invitation data access
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create creates a new invitation. A taken invite code yields
// apperr.ErrInviteCodeTaken without aborting the surrounding transaction.
func (r *InvitationRepository) Create(ctx context.Context, inv models.Invitation) (*models.Invitation, error) {
	query := `
		INSERT INTO invitations (location_id, invited_by, email, role, invite_code, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invite_code) DO NOTHING
		RETURNING ` + invitationColumns

	var created models.Invitation
	err := db.Conn(ctx, r.db).GetContext(
		ctx,
		&created,
		query,
		inv.LocationID,
		inv.InvitedBy,
		inv.Email,
		inv.Role,
		inv.InviteCode,
		inv.ExpiresAt,
		inv.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create invitation: %w", apperr.ErrInviteCodeTaken)
	}
	if err != nil {
		return nil, wrap("create invitation", "invitation", err)
	}

	return &created, nil
}

// GetByID retrieves an invitation by ID
func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	var inv models.Invitation
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inv, query, id); err != nil {
		return nil, wrap("get invitation", "invitation", err)
	}

	return &inv, nil
}

// GetByCode retrieves an invitation by its invite code
func (r *InvitationRepository) GetByCode(ctx context.Context, code string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE invite_code = $1`

	var inv models.Invitation
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inv, query, code); err != nil {
		return nil, wrap("get invitation by code", "invitation", err)
	}

	return &inv, nil
}

// GetByCodeForUpdate locks the invitation row for the rest of the
// transaction carried by ctx
func (r *InvitationRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE invite_code = $1 FOR UPDATE`

	var inv models.Invitation
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inv, query, code); err != nil {
		return nil, wrap("lock invitation", "invitation", err)
	}

	return &inv, nil
}

// CodeExists reports whether an invite code is already taken
func (r *InvitationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.db).GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM invitations WHERE invite_code = $1)`, code)
	if err != nil {
		return false, wrap("check invite code", "invitation", err)
	}
	return exists, nil
}

// FindPending returns the pending invitation for (location, email), if any
func (r *InvitationRepository) FindPending(ctx context.Context, locationID uuid.UUID, email string) (*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + ` FROM invitations
		WHERE location_id = $1 AND LOWER(email) = LOWER($2) AND status = 'pending'
	`

	var inv models.Invitation
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inv, query, locationID, email); err != nil {
		return nil, wrap("find pending invitation", "invitation", err)
	}

	return &inv, nil
}

// ListByLocations returns invitations for the given locations, newest first.
// A nil status returns every status.
func (r *InvitationRepository) ListByLocations(ctx context.Context, locationIDs []uuid.UUID, status *models.InvitationStatus) ([]models.Invitation, error) {
	invitations := []models.Invitation{}
	if len(locationIDs) == 0 {
		return invitations, nil
	}

	ids := make([]string, len(locationIDs))
	for i, id := range locationIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + invitationColumns + ` FROM invitations
		WHERE location_id = ANY($1::uuid[]) AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
	`

	if err := db.Conn(ctx, r.db).SelectContext(ctx, &invitations, query, pq.Array(ids), status); err != nil {
		return nil, wrap("list invitations", "invitation", err)
	}

	return invitations, nil
}

// MarkAccepted moves a pending invitation to accepted. A row that is no
// longer pending yields ErrAlreadyAccepted.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE invitations
		SET status = 'accepted', accepted_at = $1, accepted_by = $2, updated_at = $1
		WHERE id = $3 AND status = 'pending'
	`

	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, at, userID, id)
	if err != nil {
		return wrap("accept invitation", "invitation", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrap("accept invitation", "invitation", err)
	}
	if rowsAffected == 0 {
		return apperr.ErrAlreadyAccepted
	}
	return nil
}

// MarkExpired persists the computed expired status of a pending invitation
func (r *InvitationRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE invitations SET status = 'expired', updated_at = NOW() WHERE id = $1 AND status = 'pending'`

	if _, err := db.Conn(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return wrap("expire invitation", "invitation", err)
	}
	return nil
}

// Refresh replaces the code and expiry of a pending invitation
func (r *InvitationRepository) Refresh(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*models.Invitation, error) {
	query := `
		UPDATE invitations
		SET invite_code = $1, expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'pending'
		RETURNING ` + invitationColumns

	var inv models.Invitation
	if err := db.Conn(ctx, r.db).GetContext(ctx, &inv, query, code, expiresAt, id); err != nil {
		return nil, wrap("refresh invitation", "invitation", err)
	}

	return &inv, nil
}

// Delete deletes a pending invitation
func (r *InvitationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM invitations WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return wrap("delete invitation", "invitation", err)
	}

	return expectOne("delete invitation", "invitation", result)
}
