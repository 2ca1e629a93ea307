package domain

import "time"

// EventType names an outbound notification.
type EventType string

const (
	EventDeletionWarning          EventType = "deletion-warning"
	EventJobStateChanged          EventType = "job-state-changed"
	EventCascadeDeletionCompleted EventType = "cascade-deletion-completed"
	EventEntityRestored           EventType = "entity-restored"
	EventSystemStatus             EventType = "system-status"
)

// Event is one message placed on the notification sink.
type Event struct {
	Type      EventType `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// DeletionWarning is emitted when a deletion is requested.
type DeletionWarning struct {
	EntityID            string               `json:"entityId,omitempty"`
	EntityIDs           []string             `json:"entityIds,omitempty"`
	Impact              int                  `json:"impact"`
	AffectedCollections []AffectedCollection `json:"affectedCollections"`
	Recommendation      string               `json:"recommendation"`
	Severity            Severity             `json:"severity"`
}

// JobStateChange is emitted on every job transition.
type JobStateChange struct {
	JobID  string   `json:"jobId"`
	Type   JobType  `json:"type"`
	State  JobState `json:"state"`
	Error  string   `json:"error,omitempty"`
	Entity string   `json:"entityId,omitempty"`
}
