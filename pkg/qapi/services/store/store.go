// Package store persists programs, jobs, compute resources and users. BunStore
// is the PostgreSQL implementation; MemoryStore backs tests and --memory mode.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
)

type Programs interface {
	CreateProgram(ctx context.Context, p *models.Program) error
	UpdateProgram(ctx context.Context, p *models.Program) error
	// FindProgramByTitle returns the first program of owner with title.
	FindProgramByTitle(ctx context.Context, ownerID uuid.UUID, title string) (*models.Program, error)
	GetProgram(ctx context.Context, ownerID, id uuid.UUID) (*models.Program, error)
	ListPrograms(ctx context.Context, ownerID uuid.UUID) ([]models.Program, error)
	CountPrograms(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// Jobs returned by lookups carry their ComputeResource when one is set.
type Jobs interface {
	CreateJob(ctx context.Context, j *models.Job) error
	UpdateJob(ctx context.Context, j *models.Job) error
	// GetJob is not scoped to an owner.
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetOwnedJob(ctx context.Context, ownerID, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error)
}

type Resources interface {
	// ResourcesForUser lists the resources granted to a user, oldest first.
	ResourcesForUser(ctx context.Context, userID uuid.UUID) ([]models.ComputeResource, error)
	CreateResource(ctx context.Context, r *models.ComputeResource) error
	GrantResource(ctx context.Context, resourceID, userID uuid.UUID) error
	ListResources(ctx context.Context) ([]models.ComputeResource, error)
}

// Identity is an account as described by an identity provider.
type Identity struct {
	Provider   string
	ProviderID string
	Login      string
	Name       string
	Email      string
}

type Users interface {
	// FindOrCreateUser matches on (Provider, ProviderID) and refreshes the
	// profile fields of an existing user.
	FindOrCreateUser(ctx context.Context, id Identity) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
}

type Store interface {
	Programs
	Jobs
	Resources
	Users
}
