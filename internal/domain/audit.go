package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeletionType distinguishes single and batch deletions in the audit trail.
type DeletionType string

const (
	DeletionCascade      DeletionType = "cascade"
	DeletionBatchCascade DeletionType = "batch_cascade"
)

// AuditStatus records whether every cascade step ran.
type AuditStatus string

const (
	AuditCompleted AuditStatus = "completed"
	AuditPartial   AuditStatus = "partial"
)

// CascadeOperation is one per-relation mutation applied during a deletion.
type CascadeOperation struct {
	Collection    string       `json:"collection"`
	OperationType RelationKind `json:"operationType"`
	AffectedCount int          `json:"affectedCount"`
	JobID         uuid.UUID    `json:"jobId"`
}

// DeletionAuditRecord is written once per deletion and only updated on restore.
type DeletionAuditRecord struct {
	ID           uuid.UUID          `json:"id"`
	EntityID     string             `json:"entityId"`
	DeletionType DeletionType       `json:"deletionType"`
	Reason       string             `json:"reason,omitempty"`
	Snapshot     *Snapshot          `json:"snapshot,omitempty"`
	Operations   []CascadeOperation `json:"cascadeOperations"`
	Status       AuditStatus        `json:"status"`
	Error        string             `json:"error,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	PerformedBy  string             `json:"performedBy"`
	RestoredAt   *time.Time         `json:"restoredAt,omitempty"`
	RestoredBy   string             `json:"restoredBy,omitempty"`
}

// IsRestored reports whether the record was already used for a restore.
func (r *DeletionAuditRecord) IsRestored() bool {
	return r.RestoredAt != nil
}

// TotalAffected sums affected documents across operations.
func (r *DeletionAuditRecord) TotalAffected() int {
	total := 0
	for _, op := range r.Operations {
		total += op.AffectedCount
	}
	return total
}

// AuditSummary is the externally visible form of an audit record; the
// snapshot is reduced to per-relation counts.
type AuditSummary struct {
	ID             uuid.UUID          `json:"id"`
	EntityID       string             `json:"entityId"`
	DeletionType   DeletionType       `json:"deletionType"`
	Reason         string             `json:"reason,omitempty"`
	Status         AuditStatus        `json:"status"`
	Error          string             `json:"error,omitempty"`
	Operations     []CascadeOperation `json:"cascadeOperations"`
	SnapshotCounts map[string]int     `json:"snapshotCounts"`
	HasSnapshot    bool               `json:"hasSnapshot"`
	Timestamp      time.Time          `json:"timestamp"`
	PerformedBy    string             `json:"performedBy"`
	RestoredAt     *time.Time         `json:"restoredAt,omitempty"`
	RestoredBy     string             `json:"restoredBy,omitempty"`
}

// Summary builds the reduced view of the record.
func (r *DeletionAuditRecord) Summary() AuditSummary {
	s := AuditSummary{
		ID:             r.ID,
		EntityID:       r.EntityID,
		DeletionType:   r.DeletionType,
		Reason:         r.Reason,
		Status:         r.Status,
		Error:          r.Error,
		Operations:     r.Operations,
		SnapshotCounts: map[string]int{},
		Timestamp:      r.Timestamp,
		PerformedBy:    r.PerformedBy,
		RestoredAt:     r.RestoredAt,
		RestoredBy:     r.RestoredBy,
	}
	if r.Snapshot != nil {
		s.HasSnapshot = true
		s.SnapshotCounts = r.Snapshot.Counts()
	}
	return s
}

// RestoreResult reports what a restore re-applied. Skipped lists documents
// that were gone or whose pointer now belongs to another entity.
type RestoreResult struct {
	EntityID   string              `json:"entityId"`
	AuditID    uuid.UUID           `json:"auditId"`
	Restored   map[string]int      `json:"restored"`
	Skipped    map[string][]string `json:"skipped,omitempty"`
	RestoredAt time.Time           `json:"restoredAt"`
	RestoredBy string              `json:"restoredBy"`
}
