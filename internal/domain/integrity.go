package domain

// OrphanedReference is a live link pointing at a missing or inactive student.
type OrphanedReference struct {
	Relation   string `json:"relation"`
	DocumentID string `json:"documentId"`
	EntityID   string `json:"entityId"`
	Reason     string `json:"reason"`
}

// Orphan reasons.
const (
	OrphanMissing  = "missing"
	OrphanInactive = "inactive"
)

// IssueType classifies integrity findings.
type IssueType string

const (
	IssueOrphanedReference     IssueType = "orphaned_reference"
	IssueMissingBackReference  IssueType = "missing_back_reference"
	IssueDanglingBackReference IssueType = "dangling_back_reference"
)

// IntegrityIssue is one inconsistency found by a validation scan.
type IntegrityIssue struct {
	Type       IssueType `json:"type"`
	Relation   string    `json:"relation"`
	DocumentID string    `json:"documentId"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
}
