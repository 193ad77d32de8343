package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/uptrace/bun"
)

type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return qerr.Newf(qerr.CodeNotFound, "%s not found", what)
	}
	return err
}

func (s *BunStore) CreateProgram(ctx context.Context, p *models.Program) error {
	_, err := s.db.NewInsert().Model(p).Returning("*").Exec(ctx)
	return err
}

func (s *BunStore) UpdateProgram(ctx context.Context, p *models.Program) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().Model(p).WherePK().Exec(ctx)
	return err
}

func (s *BunStore) FindProgramByTitle(ctx context.Context, ownerID uuid.UUID, title string) (*models.Program, error) {
	var p models.Program
	err := s.db.NewSelect().
		Model(&p).
		Where("p.owner_id = ?", ownerID).
		Where("p.title = ?", title).
		OrderExpr("p.created_at ASC, p.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "program")
	}
	return &p, nil
}

func (s *BunStore) GetProgram(ctx context.Context, ownerID, id uuid.UUID) (*models.Program, error) {
	var p models.Program
	err := s.db.NewSelect().
		Model(&p).
		Where("p.id = ?", id).
		Where("p.owner_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "program")
	}
	return &p, nil
}

func (s *BunStore) ListPrograms(ctx context.Context, ownerID uuid.UUID) ([]models.Program, error) {
	programs := []models.Program{}
	err := s.db.NewSelect().
		Model(&programs).
		Where("p.owner_id = ?", ownerID).
		Order("p.created_at DESC").
		Scan(ctx)
	return programs, err
}

func (s *BunStore) CountPrograms(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return s.db.NewSelect().
		Model((*models.Program)(nil)).
		Where("p.owner_id = ?", ownerID).
		Count(ctx)
}

func (s *BunStore) CreateJob(ctx context.Context, j *models.Job) error {
	_, err := s.db.NewInsert().Model(j).Returning("*").Exec(ctx)
	return err
}

func (s *BunStore) UpdateJob(ctx context.Context, j *models.Job) error {
	j.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().Model(j).WherePK().Exec(ctx)
	return err
}

func (s *BunStore) selectJob(j *models.Job) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(j).
		Relation("ComputeResource")
}

// normalizeJob drops the zero-valued relation a LEFT JOIN leaves behind.
func normalizeJob(j *models.Job) {
	if !j.ComputeResourceID.Valid {
		j.ComputeResource = nil
	}
}

func (s *BunStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	if err := s.selectJob(&j).Where("j.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "job")
	}
	normalizeJob(&j)
	return &j, nil
}

func (s *BunStore) GetOwnedJob(ctx context.Context, ownerID, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.selectJob(&j).
		Where("j.id = ?", id).
		Where("j.owner_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "job")
	}
	normalizeJob(&j)
	return &j, nil
}

func (s *BunStore) ListJobs(ctx context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	jobs := []models.Job{}
	err := s.db.NewSelect().
		Model(&jobs).
		Relation("ComputeResource").
		Where("j.owner_id = ?", ownerID).
		Order("j.created_at DESC").
		Scan(ctx)
	for i := range jobs {
		normalizeJob(&jobs[i])
	}
	return jobs, err
}

func (s *BunStore) ResourcesForUser(ctx context.Context, userID uuid.UUID) ([]models.ComputeResource, error) {
	resources := []models.ComputeResource{}
	err := s.db.NewSelect().
		Model(&resources).
		Join("JOIN gateway.compute_resource_users AS cru ON cru.compute_resource_id = cr.id").
		Where("cru.user_id = ?", userID).
		OrderExpr("cr.created_at ASC, cr.id ASC").
		Scan(ctx)
	return resources, err
}

func (s *BunStore) CreateResource(ctx context.Context, r *models.ComputeResource) error {
	_, err := s.db.NewInsert().Model(r).Returning("*").Exec(ctx)
	return err
}

func (s *BunStore) GrantResource(ctx context.Context, resourceID, userID uuid.UUID) error {
	grant := &models.ComputeResourceUser{ComputeResourceID: resourceID, UserID: userID}
	_, err := s.db.NewInsert().Model(grant).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

func (s *BunStore) ListResources(ctx context.Context) ([]models.ComputeResource, error) {
	resources := []models.ComputeResource{}
	err := s.db.NewSelect().Model(&resources).Order("cr.created_at ASC").Scan(ctx)
	return resources, err
}

func (s *BunStore) FindOrCreateUser(ctx context.Context, id Identity) (*models.User, error) {
	var user models.User
	err := s.db.NewSelect().
		Model(&user).
		Where("provider = ?", id.Provider).
		Where("provider_id = ?", id.ProviderID).
		Scan(ctx)

	if err == nil {
		user.Login = id.Login
		user.Name = id.Name
		user.Email = id.Email
		user.UpdatedAt = time.Now()
		if _, err := s.db.NewUpdate().Model(&user).WherePK().Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return &user, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	user = models.User{
		Email:      id.Email,
		Login:      id.Login,
		Name:       id.Name,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
	}
	if _, err := s.db.NewInsert().Model(&user).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *BunStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.NewSelect().Model(&user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *BunStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := s.db.NewSelect().
		Model(&user).
		Where("login = ?", login).
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

var _ Store = (*BunStore)(nil)
