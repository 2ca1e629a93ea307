package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Payload is the typed input of a job. Exactly one variant exists per JobType.
type Payload interface {
	JobType() JobType
	Validate() error
}

// CascadeDeletionPayload targets a single entity.
type CascadeDeletionPayload struct {
	EntityID string `json:"entityId"`
	Reason   string `json:"reason,omitempty"`
}

func (*CascadeDeletionPayload) JobType() JobType { return JobCascadeDeletion }

// Validate trims the entity id in place.
func (p *CascadeDeletionPayload) Validate() error {
	p.EntityID = strings.TrimSpace(p.EntityID)
	if p.EntityID == "" {
		return ErrEmptyEntityID
	}
	return nil
}

// BatchCascadeDeletionPayload targets several entities processed one after another.
type BatchCascadeDeletionPayload struct {
	EntityIDs []string `json:"entityIds"`
	Reason    string   `json:"reason,omitempty"`
}

func (*BatchCascadeDeletionPayload) JobType() JobType { return JobBatchCascadeDeletion }

// Validate trims each id in place and checks shape only; the size limit is
// enforced by the scheduler.
func (p *BatchCascadeDeletionPayload) Validate() error {
	if len(p.EntityIDs) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[string]struct{}, len(p.EntityIDs))
	for i, id := range p.EntityIDs {
		id = strings.TrimSpace(id)
		p.EntityIDs[i] = id
		if id == "" {
			return ErrEmptyEntityID
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateBatchID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// OrphanCleanupPayload configures an orphaned-reference sweep.
type OrphanCleanupPayload struct {
	DryRun bool `json:"dryRun,omitempty"`
}

func (*OrphanCleanupPayload) JobType() JobType { return JobOrphanedReferenceCleanup }
func (*OrphanCleanupPayload) Validate() error  { return nil }

// IntegrityValidationPayload has no parameters; the scan covers every relation.
type IntegrityValidationPayload struct{}

func (*IntegrityValidationPayload) JobType() JobType { return JobIntegrityValidation }
func (*IntegrityValidationPayload) Validate() error  { return nil }

// DecodePayload decodes raw JSON into the payload variant for t.
func DecodePayload(t JobType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case JobCascadeDeletion:
		p = &CascadeDeletionPayload{}
	case JobBatchCascadeDeletion:
		p = &BatchCascadeDeletionPayload{}
	case JobOrphanedReferenceCleanup:
		p = &OrphanCleanupPayload{}
	case JobIntegrityValidation:
		p = &IntegrityValidationPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// JobResult is the typed output of a completed job.
type JobResult interface {
	JobType() JobType
}

// CascadeDeletionResult summarises one entity deletion.
type CascadeDeletionResult struct {
	EntityID      string             `json:"entityId"`
	AuditID       uuid.UUID          `json:"auditId"`
	Operations    []CascadeOperation `json:"cascadeOperations"`
	TotalAffected int                `json:"totalAffected"`
}

func (*CascadeDeletionResult) JobType() JobType { return JobCascadeDeletion }

// BatchFailure records why one entity of a batch could not be deleted.
type BatchFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchDeletionResult lists per-entity outcomes of a batch.
type BatchDeletionResult struct {
	Succeeded []string             `json:"succeeded"`
	Failed    []BatchFailure       `json:"failed"`
	Skipped   []string             `json:"skipped,omitempty"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	AuditIDs  map[string]uuid.UUID `json:"auditIds,omitempty"`
}

func (*BatchDeletionResult) JobType() JobType { return JobBatchCascadeDeletion }

// OrphanCleanupResult summarises an orphaned-reference sweep.
type OrphanCleanupResult struct {
	DryRun       bool                `json:"dryRun"`
	LinksScanned int                 `json:"linksScanned"`
	Found        int                 `json:"found"`
	Cleaned      int                 `json:"cleaned"`
	ByCollection map[string]int      `json:"byCollection"`
	Orphans      []OrphanedReference `json:"orphans"`
}

func (*OrphanCleanupResult) JobType() JobType { return JobOrphanedReferenceCleanup }

// IntegrityReport lists every inconsistency found by a validation scan.
type IntegrityReport struct {
	LinksChecked    int              `json:"linksChecked"`
	EntitiesChecked int              `json:"entitiesChecked"`
	Issues          []IntegrityIssue `json:"issues"`
}

func (*IntegrityReport) JobType() JobType { return JobIntegrityValidation }

// DecodeResult decodes raw JSON into the result variant for t. Empty input yields nil.
func DecodeResult(t JobType, raw json.RawMessage) (JobResult, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r JobResult
	switch t {
	case JobCascadeDeletion:
		r = &CascadeDeletionResult{}
	case JobBatchCascadeDeletion:
		r = &BatchDeletionResult{}
	case JobOrphanedReferenceCleanup:
		r = &OrphanCleanupResult{}
	case JobIntegrityValidation:
		r = &IntegrityReport{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, t)
	}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", t, err)
	}
	return r, nil
}
