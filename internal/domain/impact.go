package domain

import "time"

// Severity grades the blast radius of a deletion.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

var recommendations = map[Severity]string{
	SeverityLow:     "safe to proceed",
	SeverityMedium:  "review affected records before proceeding",
	SeverityHigh:    "high impact: confirm with an administrator and schedule during low activity",
	SeverityUnknown: "proceed with caution",
}

// Recommendation returns the fixed advice for a severity.
func (s Severity) Recommendation() string {
	return recommendations[s]
}

// AffectedCollection is one relation with live references to the entity.
type AffectedCollection struct {
	Name  string       `json:"name"`
	Count int          `json:"count"`
	Type  RelationKind `json:"type"`
}

// ImpactAnalysis is the read-only blast radius of deleting one or more entities.
type ImpactAnalysis struct {
	AffectedCollections []AffectedCollection `json:"affectedCollections"`
	TotalDocuments      int                  `json:"totalDocuments"`
	Severity            Severity             `json:"severity"`
	Recommendation      string               `json:"recommendation"`
}

// UnknownImpact is returned when analysis fails; it never blocks deletion.
func UnknownImpact() *ImpactAnalysis {
	return &ImpactAnalysis{
		AffectedCollections: []AffectedCollection{},
		Severity:            SeverityUnknown,
		Recommendation:      SeverityUnknown.Recommendation(),
	}
}

// Thresholds split totals into severities.
type Thresholds struct {
	Moderate int
	High     int
}

// DefaultThresholds are used when none are configured.
var DefaultThresholds = Thresholds{Moderate: 10, High: 50}

// Classify derives the severity of a document total.
func (t Thresholds) Classify(total int) Severity {
	switch {
	case total < t.Moderate:
		return SeverityLow
	case total <= t.High:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

const (
	baseProcessingTime   = 500 * time.Millisecond
	perDocProcessingTime = 50 * time.Millisecond
)

// EstimateProcessingTime gives a rough wall time for cascading total documents.
func EstimateProcessingTime(total int) time.Duration {
	return baseProcessingTime + time.Duration(total)*perDocProcessingTime
}
