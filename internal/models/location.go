package models

import (
	"time"

	"github.com/google/uuid"
)

// Location represents a restaurant or shop owned by one user
type Location struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address"`
	Phone     *string   `db:"phone" json:"phone"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Not stored directly in database
	Owner *User `db:"-" json:"owner,omitempty"`
}

// LocationRequest is used for location creation
type LocationRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=255"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
}

// LocationUpdateRequest is used for updating location information
type LocationUpdateRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=255"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	IsActive *bool   `json:"is_active"`
}

// TeamMember is one row of a location's team listing
type TeamMember struct {
	UserID   uuid.UUID        `db:"user_id" json:"user_id"`
	Name     string           `db:"name" json:"name"`
	Email    string           `db:"email" json:"email"`
	Role     Role             `db:"role" json:"role"`
	Status   MembershipStatus `db:"status" json:"status"`
	JoinedAt time.Time        `db:"created_at" json:"joined_at"`
}

// Team is a location's owner, members and outstanding invitations
type Team struct {
	Location    Location     `json:"location"`
	Owner       *User        `json:"owner"`
	Members     []TeamMember `json:"members"`
	Invitations []Invitation `json:"invitations,omitempty"`
}
