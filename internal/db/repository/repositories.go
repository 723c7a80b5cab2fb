package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetCurrentLocation(ctx context.Context, id uuid.UUID, locationID *uuid.UUID, status models.UserStatus) error
	SetLegacyRole(ctx context.Context, id uuid.UUID, role *models.Role) error
}

type LocationStore interface {
	authz.LocationReader
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Location, error)
	Create(ctx context.Context, loc models.Location) (*models.Location, error)
	Update(ctx context.Context, loc models.Location) (*models.Location, error)
	InUse(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MembershipStore interface {
	authz.MembershipReader
	Create(ctx context.Context, m models.Membership) error
	Upsert(ctx context.Context, m models.Membership) error
	UpdateRole(ctx context.Context, userID, locationID uuid.UUID, role models.Role) error
	Delete(ctx context.Context, userID, locationID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	CountActive(ctx context.Context, locationID uuid.UUID) (int, error)
	ListTeam(ctx context.Context, locationID uuid.UUID) ([]models.TeamMember, error)
}

type PermissionStore interface {
	List(ctx context.Context) ([]models.Permission, error)
}

type InvitationStore interface {
	Create(ctx context.Context, inv models.Invitation) (*models.Invitation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	GetByCode(ctx context.Context, code string) (*models.Invitation, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*models.Invitation, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	FindPending(ctx context.Context, locationID uuid.UUID, email string) (*models.Invitation, error)
	ListByLocations(ctx context.Context, locationIDs []uuid.UUID, status *models.InvitationStatus) ([]models.Invitation, error)
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID) error
	Refresh(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*models.Invitation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReportStore interface {
	Create(ctx context.Context, report models.Report) (*models.Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateDraft(ctx context.Context, report models.Report) (*models.Report, error)
	Transition(ctx context.Context, report models.Report, from models.ReportStatus) (*models.Report, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	Summary(ctx context.Context, locationID uuid.UUID, from, to time.Time) (*models.LocationSummary, error)
}

// Transactor runs fn in a single database transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories provides access to all repository instances
type Repositories struct {
	Tx             Transactor
	User           UserStore
	Location       LocationStore
	Membership     MembershipStore
	Permission     PermissionStore
	RolePermission authz.GrantRepository
	Invitation     InvitationStore
	Report         ReportStore
}

// NewRepositories creates a new repositories container
func NewRepositories(database *db.Postgres) *Repositories {
	return &Repositories{
		Tx:             db.NewTxManager(database.DB),
		User:           NewUserRepository(database.DB),
		Location:       NewLocationRepository(database.DB),
		Membership:     NewMembershipRepository(database.DB),
		Permission:     NewPermissionRepository(database.DB),
		RolePermission: NewRolePermissionRepository(database.DB),
		Invitation:     NewInvitationRepository(database.DB),
		Report:         NewReportRepository(database.DB),
	}
}
