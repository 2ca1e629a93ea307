package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap one of these so callers can classify
// with errors.Is regardless of the message.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("not authorized")
	ErrIntegrity      = errors.New("integrity violation")
	ErrTransientStore = errors.New("transient store failure")
)

var (
	// ErrEntityNotFound is returned when the target entity is missing or inactive.
	ErrEntityNotFound = fmt.Errorf("%w: entity not found or inactive", ErrNotFound)

	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = fmt.Errorf("%w: job not found", ErrNotFound)

	// ErrAuditNotFound is returned when an audit record cannot be found by ID.
	ErrAuditNotFound = fmt.Errorf("%w: audit record not found", ErrNotFound)

	// ErrInvalidPriority is returned for priorities outside low/medium/high.
	ErrInvalidPriority = fmt.Errorf("%w: priority must be one of low, medium, high", ErrValidation)

	// ErrInvalidJobType is returned for unknown job types.
	ErrInvalidJobType = fmt.Errorf("%w: unknown job type", ErrValidation)

	// ErrEmptyEntityID is returned when an entity id is blank.
	ErrEmptyEntityID = fmt.Errorf("%w: entity id cannot be empty", ErrValidation)

	// ErrEmptyBatch is returned when a batch request carries no ids.
	ErrEmptyBatch = fmt.Errorf("%w: batch must contain at least one id", ErrValidation)

	// ErrBatchTooLarge is returned when a batch exceeds the configured limit.
	ErrBatchTooLarge = fmt.Errorf("%w: batch exceeds maximum size", ErrValidation)

	// ErrDuplicateBatchID is returned when the same id appears twice in a batch.
	ErrDuplicateBatchID = fmt.Errorf("%w: duplicate id in batch", ErrValidation)

	// ErrInvalidAuditID is returned when an audit id is not a UUID.
	ErrInvalidAuditID = fmt.Errorf("%w: invalid audit id", ErrValidation)

	// ErrAdminRequired is returned when a non-admin enqueues an admin-only job type.
	ErrAdminRequired = fmt.Errorf("%w: admin role required", ErrUnauthorized)

	// ErrJobNotCancellable is returned when the job is past the point of cancellation.
	ErrJobNotCancellable = fmt.Errorf("%w: job can no longer be cancelled", ErrConflict)

	// ErrNoSnapshot is returned when an audit record has no snapshot to restore from.
	ErrNoSnapshot = fmt.Errorf("%w: audit record has no snapshot", ErrIntegrity)

	// ErrAlreadyRestored is returned when an audit record was already used for a restore.
	ErrAlreadyRestored = fmt.Errorf("%w: audit record already restored", ErrIntegrity)

	// ErrEntityStillLive is returned when restoring onto an entity that is still active.
	ErrEntityStillLive = fmt.Errorf("%w: a live entity with this id already exists", ErrIntegrity)

	// ErrAuditEntityMismatch is returned when the audit record targets another entity.
	ErrAuditEntityMismatch = fmt.Errorf("%w: audit record belongs to a different entity", ErrIntegrity)

	// ErrJobCancelled is recorded on jobs cancelled before they started.
	ErrJobCancelled = errors.New("cancelled")

	// ErrInterrupted is recorded on jobs that were queued or active when the process stopped.
	ErrInterrupted = errors.New("interrupted by restart")
)

// ConflictError reports that another job already holds the deletion slot
// for an entity.
type ConflictError struct {
	EntityID string
	JobID    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entity %s already has an active deletion job %s", e.EntityID, e.JobID)
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransientStoreError wraps a single per-collection write failure.
func TransientStoreError(collection string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransientStore, collection, err)
}
