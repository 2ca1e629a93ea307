package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Ensure pgAuditRepo implements repository.AuditRepository.
var _ repository.AuditRepository = (*pgAuditRepo)(nil)

type pgAuditRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditRepository creates a PostgreSQL-backed audit repository.
func NewPostgresAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &pgAuditRepo{pool: pool}
}

const auditColumns = `id, entity_id, deletion_type, reason, snapshot, cascade_operations,
	status, error, performed_by, created_at, restored_at, restored_by`

func (r *pgAuditRepo) Create(ctx context.Context, rec *domain.DeletionAuditRecord) error {
	var snapshot []byte
	if rec.Snapshot != nil {
		raw, err := json.Marshal(rec.Snapshot)
		if err != nil {
			return fmt.Errorf("postgres: marshal snapshot: %w", err)
		}
		snapshot = raw
	}
	ops := rec.Operations
	if ops == nil {
		ops = []domain.CascadeOperation{}
	}
	opsRaw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("postgres: marshal operations: %w", err)
	}

	query := `INSERT INTO deletion_audits (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.EntityID, rec.DeletionType, rec.Reason, snapshot, opsRaw,
		rec.Status, rec.Error, rec.PerformedBy, rec.Timestamp, rec.RestoredAt, rec.RestoredBy,
	)
	if err != nil {
		return fmt.Errorf("postgres: create audit: %w", err)
	}
	return nil
}

func scanAudit(row pgx.Row) (*domain.DeletionAuditRecord, error) {
	var (
		rec      domain.DeletionAuditRecord
		snapshot []byte
		ops      []byte
	)
	err := row.Scan(
		&rec.ID, &rec.EntityID, &rec.DeletionType, &rec.Reason, &snapshot, &ops,
		&rec.Status, &rec.Error, &rec.PerformedBy, &rec.Timestamp, &rec.RestoredAt, &rec.RestoredBy,
	)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		rec.Snapshot = &domain.Snapshot{}
		if err := json.Unmarshal(snapshot, rec.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	if err := json.Unmarshal(ops, &rec.Operations); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return &rec, nil
}

func (r *pgAuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeletionAuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM deletion_audits WHERE id = $1`
	rec, err := scanAudit(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAuditNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get audit: %w", err)
	}
	return rec, nil
}

func (r *pgAuditRepo) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.DeletionAuditRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM deletion_audits WHERE entity_id = $1`, entityID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count audits: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM deletion_audits
		WHERE entity_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, entityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list audits: %w", err)
	}
	defer rows.Close()

	out := []*domain.DeletionAuditRecord{}
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan audit: %w", err)
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// MarkRestored is a conditional update; a concurrent restore loses the race
// instead of overwriting the first one.
func (r *pgAuditRepo) MarkRestored(ctx context.Context, id uuid.UUID, at time.Time, by string) error {
	query := `UPDATE deletion_audits SET restored_at = $2, restored_by = $3
		WHERE id = $1 AND restored_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id, at, by)
	if err != nil {
		return fmt.Errorf("postgres: mark restored: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deletion_audits WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check audit: %w", err)
	}
	if !exists {
		return domain.ErrAuditNotFound
	}
	return domain.ErrAlreadyRestored
}
