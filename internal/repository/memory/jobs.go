package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository keeps job records in memory as JSON.
type JobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID][]byte
}

// NewJobRepository creates an empty job store.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[uuid.UUID][]byte)}
}

func (r *JobRepository) Create(_ context.Context, job *domain.Job) error {
	return r.put(job)
}

func (r *JobRepository) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	_, ok := r.jobs[job.ID]
	r.mu.Unlock()
	if !ok {
		return domain.ErrJobNotFound
	}
	return r.put(job)
}

func (r *JobRepository) put(job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = raw
	return nil
}

func (r *JobRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) ListUnfinished(_ context.Context) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, raw := range r.jobs {
		var job domain.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, err
		}
		if !job.State.IsTerminal() {
			out = append(out, &job)
		}
	}
	return out, nil
}
