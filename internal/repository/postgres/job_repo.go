package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

type pgJobRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresJobRepository creates a new PostgreSQL-backed job repository.
func NewPostgresJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &pgJobRepo{pool: pool}
}

const jobColumns = `id, type, priority, state, payload, result, error,
	requested_by, created_at, started_at, completed_at`

func marshalResult(job *domain.Job) ([]byte, error) {
	if job.Result == nil {
		return nil, nil
	}
	return json.Marshal(job.Result)
}

func (r *pgJobRepo) Create(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal payload: %w", err)
	}
	result, err := marshalResult(job)
	if err != nil {
		return fmt.Errorf("postgres: marshal result: %w", err)
	}

	query := `INSERT INTO cascade_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.pool.Exec(ctx, query,
		job.ID, job.Type, job.Priority, job.State, payload, result, job.Error,
		job.RequestedBy, job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (r *pgJobRepo) Update(ctx context.Context, job *domain.Job) error {
	result, err := marshalResult(job)
	if err != nil {
		return fmt.Errorf("postgres: marshal result: %w", err)
	}

	query := `
		UPDATE cascade_jobs
		SET state = $2, result = $3, error = $4, started_at = $5, completed_at = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, job.ID, job.State, result, job.Error, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job     domain.Job
		payload []byte
		result  []byte
	)
	err := row.Scan(
		&job.ID, &job.Type, &job.Priority, &job.State, &payload, &result, &job.Error,
		&job.RequestedBy, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if job.Payload, err = domain.DecodePayload(job.Type, payload); err != nil {
		return nil, err
	}
	if job.Result, err = domain.DecodeResult(job.Type, result); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *pgJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM cascade_jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	return job, nil
}

func (r *pgJobRepo) ListUnfinished(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM cascade_jobs
		WHERE state IN ('queued', 'active') ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unfinished jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
