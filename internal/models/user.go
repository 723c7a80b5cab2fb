package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a per-location authority level. The same values are stored in
// users.role (legacy), location_user.role and role_permissions.role.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Roles lists every role that can hold grants, highest authority first.
var Roles = []Role{RoleOwner, RoleManager, RoleEmployee}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleEmployee:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never expose in JSON
	// Role is the legacy single-location role. Membership rows are
	// authoritative; this is only read by the deprecated fallback path.
	Role       *Role      `db:"role" json:"role,omitempty"`
	LocationID *uuid.UUID `db:"location_id" json:"location_id"`
	Status     UserStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`

	// Not stored directly in database
	Memberships []Membership `db:"-" json:"memberships,omitempty"`
}

// RegisterRequest is used for account creation
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is used for authentication
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is used for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// CurrentLocationRequest switches the user's current location pointer
type CurrentLocationRequest struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
}
