package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qerr"
)

// MemoryStore keeps everything in maps. Returned records are copies.
type MemoryStore struct {
	mu        sync.RWMutex
	programs  map[uuid.UUID]models.Program
	jobs      map[uuid.UUID]models.Job
	resources map[uuid.UUID]models.ComputeResource
	grants    map[uuid.UUID]map[uuid.UUID]time.Time // user -> resource -> granted at
	users     map[uuid.UUID]models.User
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		programs:  map[uuid.UUID]models.Program{},
		jobs:      map[uuid.UUID]models.Job{},
		resources: map[uuid.UUID]models.ComputeResource{},
		grants:    map[uuid.UUID]map[uuid.UUID]time.Time{},
		users:     map[uuid.UUID]models.User{},
		now:       time.Now,
	}
}

// tick returns strictly increasing timestamps so creation order is stable
// even when the clock does not advance between calls.
func (s *MemoryStore) tick(last time.Time) time.Time {
	t := s.now()
	if !t.After(last) {
		t = last.Add(time.Microsecond)
	}
	return t
}

func (s *MemoryStore) latest() time.Time {
	var last time.Time
	for _, p := range s.programs {
		if p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
	}
	for _, j := range s.jobs {
		if j.CreatedAt.After(last) {
			last = j.CreatedAt
		}
	}
	for _, r := range s.resources {
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}
	return last
}

func (s *MemoryStore) CreateProgram(_ context.Context, p *models.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = s.tick(s.latest())
	p.UpdatedAt = p.CreatedAt
	s.programs[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateProgram(_ context.Context, p *models.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.programs[p.ID]; !ok {
		return qerr.Newf(qerr.CodeNotFound, "program not found")
	}
	p.UpdatedAt = s.now()
	s.programs[p.ID] = *p
	return nil
}

func (s *MemoryStore) FindProgramByTitle(_ context.Context, ownerID uuid.UUID, title string) (*models.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Program
	for _, p := range s.programs {
		if p.OwnerID != ownerID || p.Title != title {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, qerr.Newf(qerr.CodeNotFound, "program not found")
	}
	return found, nil
}

func (s *MemoryStore) GetProgram(_ context.Context, ownerID, id uuid.UUID) (*models.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.programs[id]
	if !ok || p.OwnerID != ownerID {
		return nil, qerr.Newf(qerr.CodeNotFound, "program not found")
	}
	return &p, nil
}

func (s *MemoryStore) ListPrograms(_ context.Context, ownerID uuid.UUID) ([]models.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Program{}
	for _, p := range s.programs {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountPrograms(ctx context.Context, ownerID uuid.UUID) (int, error) {
	programs, err := s.ListPrograms(ctx, ownerID)
	return len(programs), err
}

func (s *MemoryStore) CreateJob(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	if j.SubmissionState == "" {
		j.SubmissionState = models.SubmissionCreated
	}
	j.CreatedAt = s.tick(s.latest())
	j.UpdatedAt = j.CreatedAt
	s.jobs[j.ID] = s.detach(*j)
	return nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; !ok {
		return qerr.Newf(qerr.CodeNotFound, "job not found")
	}
	j.UpdatedAt = s.now()
	s.jobs[j.ID] = s.detach(*j)
	return nil
}

// detach strips relations before storing; attach restores them on read.
func (s *MemoryStore) detach(j models.Job) models.Job {
	j.Program = nil
	j.ComputeResource = nil
	if j.Result != nil {
		r := *j.Result
		j.Result = &r
	}
	return j
}

func (s *MemoryStore) attach(j models.Job) *models.Job {
	if j.ComputeResourceID.Valid {
		if r, ok := s.resources[j.ComputeResourceID.UUID]; ok {
			j.ComputeResource = &r
		}
	}
	if j.Result != nil {
		r := *j.Result
		j.Result = &r
	}
	return &j
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, qerr.Newf(qerr.CodeNotFound, "job not found")
	}
	return s.attach(j), nil
}

func (s *MemoryStore) GetOwnedJob(_ context.Context, ownerID, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, qerr.Newf(qerr.CodeNotFound, "job not found")
	}
	return s.attach(j), nil
}

func (s *MemoryStore) ListJobs(_ context.Context, ownerID uuid.UUID) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Job{}
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			out = append(out, *s.attach(j))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ResourcesForUser(_ context.Context, userID uuid.UUID) ([]models.ComputeResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.ComputeResource{}
	for resourceID := range s.grants[userID] {
		if r, ok := s.resources[resourceID]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateResource(_ context.Context, r *models.ComputeResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = s.tick(s.latest())
	s.resources[r.ID] = *r
	return nil
}

func (s *MemoryStore) GrantResource(_ context.Context, resourceID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resourceID]; !ok {
		return qerr.Newf(qerr.CodeNotFound, "compute resource not found")
	}
	if s.grants[userID] == nil {
		s.grants[userID] = map[uuid.UUID]time.Time{}
	}
	if _, ok := s.grants[userID][resourceID]; !ok {
		s.grants[userID][resourceID] = s.now()
	}
	return nil
}

func (s *MemoryStore) ListResources(_ context.Context) ([]models.ComputeResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ComputeResource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindOrCreateUser(_ context.Context, id Identity) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for uid, u := range s.users {
		if u.Provider == id.Provider && u.ProviderID == id.ProviderID {
			u.Login = id.Login
			u.Name = id.Name
			u.Email = id.Email
			u.UpdatedAt = now
			s.users[uid] = u
			return &u, nil
		}
	}

	u := models.User{
		ID:         uuid.New(),
		Email:      id.Email,
		Login:      id.Login,
		Name:       id.Name,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.users[u.ID] = u
	return &u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, qerr.Newf(qerr.CodeNotFound, "user not found")
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.User
	for _, u := range s.users {
		if u.Login != login {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, qerr.Newf(qerr.CodeNotFound, "user not found")
	}
	return found, nil
}

var _ Store = (*MemoryStore)(nil)
