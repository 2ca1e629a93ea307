package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the handler that executes a job.
type JobType string

const (
	JobCascadeDeletion          JobType = "cascadeDeletion"
	JobBatchCascadeDeletion     JobType = "batchCascadeDeletion"
	JobOrphanedReferenceCleanup JobType = "orphanedReferenceCleanup"
	JobIntegrityValidation      JobType = "integrityValidation"
)

// IsValid checks if the job type is known.
func (t JobType) IsValid() bool {
	switch t {
	case JobCascadeDeletion, JobBatchCascadeDeletion, JobOrphanedReferenceCleanup, JobIntegrityValidation:
		return true
	}
	return false
}

// AdminOnly reports whether only administrators may enqueue this job type.
func (t JobType) AdminOnly() bool {
	return t == JobOrphanedReferenceCleanup || t == JobIntegrityValidation
}

// Priority is the scheduling tier of a job.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists the tiers in dequeue order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns the tier index; lower ranks are dequeued first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ParsePriority parses a priority string. An empty string yields the default tier.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", ErrInvalidPriority
}

// JobState represents the lifecycle state of a job. Transitions are monotonic.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// IsTerminal returns true if the state is final.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case StateQueued:
		return next == StateActive || next == StateFailed
	case StateActive:
		return next == StateCompleted || next == StateFailed
	}
	return false
}

// Job is a unit of asynchronous work tracked through its states.
type Job struct {
	ID          uuid.UUID  `json:"jobId"`
	Type        JobType    `json:"type"`
	Payload     Payload    `json:"payload"`
	Priority    Priority   `json:"priority"`
	State       JobState   `json:"state"`
	RequestedBy string     `json:"requestedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      JobResult  `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Transition moves the job to next, stamping the matching timestamp.
func (j *Job) Transition(next JobState, at time.Time) error {
	if !j.State.CanTransitionTo(next) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, next)
	}
	j.State = next
	switch next {
	case StateActive:
		j.StartedAt = &at
	case StateCompleted, StateFailed:
		j.CompletedAt = &at
	}
	return nil
}

// Clone returns a copy that is safe to hand out of the scheduler lock.
// Payload and Result values are never mutated after assignment.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// Duration returns how long the job ran, or zero if it has not finished.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// TargetEntity returns the entity a single cascade job is bound to.
func (j *Job) TargetEntity() (string, bool) {
	if p, ok := j.Payload.(*CascadeDeletionPayload); ok {
		return p.EntityID, true
	}
	return "", false
}

type jobJSON struct {
	ID          uuid.UUID       `json:"jobId"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    Priority        `json:"priority"`
	State       JobState        `json:"state"`
	RequestedBy string          `json:"requestedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// UnmarshalJSON decodes the payload and result variants according to Type.
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw jobJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	result, err := DecodeResult(raw.Type, raw.Result)
	if err != nil {
		return err
	}
	*j = Job{
		ID:          raw.ID,
		Type:        raw.Type,
		Payload:     payload,
		Priority:    raw.Priority,
		State:       raw.State,
		RequestedBy: raw.RequestedBy,
		CreatedAt:   raw.CreatedAt,
		StartedAt:   raw.StartedAt,
		CompletedAt: raw.CompletedAt,
		Result:      result,
		Error:       raw.Error,
	}
	return nil
}
