package domain

// RelationKind classifies how a relation is cascaded.
type RelationKind string

const (
	ReferenceRemoval  RelationKind = "reference_removal"
	MembershipRemoval RelationKind = "membership_removal"
	DataArchival      RelationKind = "data_archival"
)

// Back-reference fields stored on the student.
const (
	BackFieldTeachers   = "teacher_ids"
	BackFieldOrchestras = "orchestra_ids"
)

// Relation describes one collection that points at a student.
type Relation struct {
	Name       string       `json:"name"`
	Collection string       `json:"collection"`
	Field      string       `json:"field"`
	Kind       RelationKind `json:"kind"`
	LabelField string       `json:"-"`
	// BackField is the student column listing related documents, if any.
	BackField string `json:"-"`
}

// Multi reports whether Field holds a list of ids rather than a single pointer.
func (r Relation) Multi() bool {
	return r.Kind == MembershipRemoval
}

// ActiveOnly reports whether only active documents count as live references.
// Archived records keep their pointer, so inactive ones are already cascaded.
func (r Relation) ActiveOnly() bool {
	return r.Kind == DataArchival
}

// StudentRelations is the relation registry for students, in processing order.
var StudentRelations = []Relation{
	{Name: "teachers", Collection: "teachers", Field: "student_ids", Kind: MembershipRemoval, LabelField: "name", BackField: BackFieldTeachers},
	{Name: "orchestras", Collection: "orchestras", Field: "member_ids", Kind: MembershipRemoval, LabelField: "name", BackField: BackFieldOrchestras},
	{Name: "rehearsals", Collection: "rehearsals", Field: "attendee_ids", Kind: MembershipRemoval, LabelField: "title"},
	{Name: "theory_lessons", Collection: "theory_lessons", Field: "student_ids", Kind: MembershipRemoval, LabelField: "title"},
	{Name: "lesson_slots", Collection: "lesson_slots", Field: "student_id", Kind: ReferenceRemoval, LabelField: "title"},
	{Name: "exam_records", Collection: "exam_records", Field: "student_id", Kind: DataArchival, LabelField: "title"},
}

// RelationByName looks up a registry entry.
func RelationByName(name string) (Relation, bool) {
	for _, r := range StudentRelations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Link is one live reference from a related document to a student.
type Link struct {
	DocumentID string
	EntityID   string
}
