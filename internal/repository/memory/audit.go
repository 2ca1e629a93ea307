package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

var _ repository.AuditRepository = (*AuditRepository)(nil)

// AuditRepository keeps audit records in memory. Records are deep-copied
// through JSON so callers never share state with the store.
type AuditRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID][]byte

	CreateErr error
}

// NewAuditRepository creates an empty audit store.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{records: make(map[uuid.UUID][]byte)}
}

func (r *AuditRepository) Create(_ context.Context, rec *domain.DeletionAuditRecord) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = raw
	return nil
}

func decodeAudit(raw []byte) (*domain.DeletionAuditRecord, error) {
	var rec domain.DeletionAuditRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *AuditRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.DeletionAuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.records[id]
	if !ok {
		return nil, domain.ErrAuditNotFound
	}
	return decodeAudit(raw)
}

func (r *AuditRepository) ListByEntity(_ context.Context, entityID string, limit, offset int) ([]*domain.DeletionAuditRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.DeletionAuditRecord
	for _, raw := range r.records {
		rec, err := decodeAudit(raw)
		if err != nil {
			return nil, 0, err
		}
		if rec.EntityID == entityID {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	total := len(all)
	if offset >= total {
		return []*domain.DeletionAuditRecord{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *AuditRepository) MarkRestored(_ context.Context, id uuid.UUID, at time.Time, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.records[id]
	if !ok {
		return domain.ErrAuditNotFound
	}
	rec, err := decodeAudit(raw)
	if err != nil {
		return err
	}
	if rec.RestoredAt != nil {
		return domain.ErrAlreadyRestored
	}
	rec.RestoredAt = &at
	rec.RestoredBy = by
	updated, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	r.records[id] = updated
	return nil
}
