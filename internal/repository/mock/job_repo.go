package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Ensure MockJobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*MockJobRepository)(nil)

// MockJobRepository records job writes and lets tests inject failures.
type MockJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job

	// Hook functions for injecting errors
	CreateFunc         func(ctx context.Context, job *domain.Job) error
	UpdateFunc         func(ctx context.Context, job *domain.Job) error
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListUnfinishedFunc func(ctx context.Context) ([]*domain.Job, error)

	// Recorded state transitions, in call order.
	Updates []domain.JobState
}

// NewMockJobRepository creates a new mock repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, job.State)
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (m *MockJobRepository) ListUnfinished(ctx context.Context) ([]*domain.Job, error) {
	if m.ListUnfinishedFunc != nil {
		return m.ListUnfinishedFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if !j.State.IsTerminal() {
			out = append(out, j.Clone())
		}
	}
	return out, nil
}

// Seed stores a job directly, bypassing hooks.
func (m *MockJobRepository) Seed(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
}

// StateUpdates returns a copy of the recorded transitions.
func (m *MockJobRepository) StateUpdates() []domain.JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.JobState(nil), m.Updates...)
}
