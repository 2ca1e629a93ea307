package domain

import "time"

// RelatedSummary captures one related document at snapshot time.
type RelatedSummary struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Field string       `json:"field"`
	Kind  RelationKind `json:"kind"`
}

// Snapshot is the pre-deletion copy of a student and everything pointing at it.
// Related is keyed by relation name.
type Snapshot struct {
	Student    *Student                    `json:"student"`
	Related    map[string][]RelatedSummary `json:"related"`
	CapturedAt time.Time                   `json:"capturedAt"`
}

// Counts reduces the snapshot to the number of related documents per relation.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int, len(s.Related))
	for name, docs := range s.Related {
		counts[name] = len(docs)
	}
	return counts
}

// DocumentIDs returns the ids captured for one relation.
func (s *Snapshot) DocumentIDs(relation string) []string {
	docs := s.Related[relation]
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}
