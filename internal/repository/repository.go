package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// StudentRepository reads and writes the primary entity.
// Implementations must be safe for concurrent use.
type StudentRepository interface {
	// GetStudent returns the student regardless of its active flag, or
	// domain.ErrEntityNotFound.
	GetStudent(ctx context.Context, id string) (*domain.Student, error)

	// DeactivateStudent clears the active flag and stamps deleted_at.
	// Returns domain.ErrEntityNotFound when no active student has this id.
	DeactivateStudent(ctx context.Context, id string, at time.Time) error

	// RestoreStudent writes the student back as active, inserting it if missing.
	RestoreStudent(ctx context.Context, s *domain.Student) error

	// ActiveStates maps each known id to its active flag. Unknown ids are absent.
	ActiveStates(ctx context.Context, ids []string) (map[string]bool, error)

	// ListActive returns every active student.
	ListActive(ctx context.Context) ([]*domain.Student, error)
}

// RelationRepository applies cascade operations to related collections.
// Every method is driven by a domain.Relation from the registry.
type RelationRepository interface {
	// Count returns how many documents hold a live reference to entityID.
	Count(ctx context.Context, rel domain.Relation, entityID string) (int, error)

	// Related lists the documents holding a live reference to entityID.
	Related(ctx context.Context, rel domain.Relation, entityID string) ([]domain.RelatedSummary, error)

	// Apply runs the relation's cascade operation against every referencing
	// document and returns the number of documents changed.
	Apply(ctx context.Context, rel domain.Relation, entityID string, at time.Time) (int, error)

	// ApplyTo runs the cascade operation against a single document.
	ApplyTo(ctx context.Context, rel domain.Relation, entityID, documentID string, at time.Time) (int, error)

	// Reapply restores the reference from each listed document to entityID
	// and returns the ids it relinked. Missing documents and single pointers
	// now held by another entity are skipped.
	Reapply(ctx context.Context, rel domain.Relation, entityID string, documentIDs []string) ([]string, error)

	// Links lists every live reference in the relation.
	Links(ctx context.Context, rel domain.Relation) ([]domain.Link, error)

	// DocumentStates maps each known document id to its active flag.
	DocumentStates(ctx context.Context, rel domain.Relation, documentIDs []string) (map[string]bool, error)
}

// AuditRepository persists deletion audit records.
type AuditRepository interface {
	Create(ctx context.Context, rec *domain.DeletionAuditRecord) error

	// GetByID returns domain.ErrAuditNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeletionAuditRecord, error)

	// ListByEntity returns one page ordered by descending timestamp, plus the total.
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]*domain.DeletionAuditRecord, int, error)

	// MarkRestored stamps the restoration fields only if they are unset.
	// Returns domain.ErrAlreadyRestored when another restore got there first.
	MarkRestored(ctx context.Context, id uuid.UUID, at time.Time, by string) error
}

// JobRepository persists job records.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error

	// Update overwrites state, timestamps, result and error.
	Update(ctx context.Context, job *domain.Job) error

	// GetByID returns domain.ErrJobNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ListUnfinished returns jobs left queued or active.
	ListUnfinished(ctx context.Context) ([]*domain.Job, error)
}

// EntityLockStore provides the atomic check-and-set behind per-entity dedup.
type EntityLockStore interface {
	// Acquire claims key for holder. When the key is taken it returns false
	// and the current holder.
	Acquire(ctx context.Context, key, holder string) (bool, string, error)

	// Release frees key only if holder still owns it.
	Release(ctx context.Context, key, holder string) error

	// Extend renews the expiry of key while holder owns it. It returns false
	// when the key has expired or passed to another holder.
	Extend(ctx context.Context, key, holder string) (bool, error)
}

// DeletionLockKey is the lock key guarding cascade deletion of one entity.
func DeletionLockKey(entityID string) string {
	return string(domain.JobCascadeDeletion) + ":" + entityID
}
