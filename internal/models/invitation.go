package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus represents the stored status of an invitation
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation invites an email address to join a location with a role
type Invitation struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	LocationID uuid.UUID        `db:"location_id" json:"location_id"`
	InvitedBy  uuid.UUID        `db:"invited_by" json:"invited_by"`
	Email      string           `db:"email" json:"email"`
	Role       Role             `db:"role" json:"role"`
	InviteCode string           `db:"invite_code" json:"invite_code"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expires_at"`
	Status     InvitationStatus `db:"status" json:"status"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at"`
	AcceptedBy *uuid.UUID       `db:"accepted_by" json:"accepted_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`

	// Not stored directly in database
	Location *Location `db:"-" json:"location,omitempty"`
}

// IsExpired reports whether the invitation is past its expiry at now
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// CanBeAccepted is status == pending and now <= expires_at
func (i *Invitation) CanBeAccepted(now time.Time) bool {
	return i.Status == InvitationStatusPending && !i.IsExpired(now)
}

// EffectiveStatus folds expiry into the stored status
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationStatusPending && i.IsExpired(now) {
		return InvitationStatusExpired
	}
	return i.Status
}

// InvitationRequest is used for invitation creation
type InvitationRequest struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Email      string    `json:"email" validate:"required,email,max=255"`
	Role       Role      `json:"role" validate:"required,oneof=manager employee"`
}

// PublicInvitation is what an anonymous holder of a code may see
type PublicInvitation struct {
	LocationName string           `json:"location_name"`
	Email        string           `json:"email"`
	Role         Role             `json:"role"`
	Status       InvitationStatus `json:"status"`
	ExpiresAt    time.Time        `json:"expires_at"`
}
