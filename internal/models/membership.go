package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusPending MembershipStatus = "pending"
)

// Membership links a user to a location with a role (location_user table)
type Membership struct {
	UserID     uuid.UUID        `db:"user_id" json:"user_id"`
	LocationID uuid.UUID        `db:"location_id" json:"location_id"`
	Role       Role             `db:"role" json:"role"`
	Status     MembershipStatus `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// LocationAssignment assigns a user to one location with a role
type LocationAssignment struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Role       Role      `json:"role" validate:"required,oneof=manager employee"`
}

// AssignLocationsRequest is used by owners to place a user at several locations
type AssignLocationsRequest struct {
	Assignments []LocationAssignment `json:"location_assignments" validate:"required,min=1,dive"`
}

// MemberRoleRequest changes a member's role at a location
type MemberRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=manager employee"`
}
