package memory

import (
	"fmt"
	"time"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// Seed sets how many documents of each relation reference a seeded student.
type Seed struct {
	Teachers      int
	Orchestras    int
	Rehearsals    int
	TheoryLessons int
	LessonSlots   int
	ExamRecords   int
}

func (s Seed) count(rel string) int {
	switch rel {
	case "teachers":
		return s.Teachers
	case "orchestras":
		return s.Orchestras
	case "rehearsals":
		return s.Rehearsals
	case "theory_lessons":
		return s.TheoryLessons
	case "lesson_slots":
		return s.LessonSlots
	case "exam_records":
		return s.ExamRecords
	}
	return 0
}

// SeedStudent creates an active student with related documents named
// "<id>-<relation>-<n>". Back-reference fields are filled consistently.
func (s *Store) SeedStudent(id string, seed Seed) *domain.Student {
	st := &domain.Student{
		ID:        id,
		FirstName: "Student",
		LastName:  id,
		Email:     id + "@conservatory.test",
		IsActive:  true,
		CreatedAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, rel := range domain.StudentRelations {
		for i := 1; i <= seed.count(rel.Name); i++ {
			docID := fmt.Sprintf("%s-%s-%d", id, rel.Name, i)
			s.PutDocument(rel, Document{
				ID:     docID,
				Label:  fmt.Sprintf("%s %d", rel.Name, i),
				Refs:   []string{id},
				Active: true,
			})
			switch rel.BackField {
			case domain.BackFieldTeachers:
				st.TeacherIDs = append(st.TeacherIDs, docID)
			case domain.BackFieldOrchestras:
				st.OrchestraIDs = append(st.OrchestraIDs, docID)
			}
		}
	}
	s.PutStudent(st)
	return st.Clone()
}

// SeedDemo fills an empty store with a handful of students for local runs.
func (s *Store) SeedDemo() {
	s.SeedStudent("student-1", Seed{Teachers: 3, Orchestras: 2, ExamRecords: 1})
	s.SeedStudent("student-2", Seed{Teachers: 1, Rehearsals: 4, TheoryLessons: 2, LessonSlots: 2})
	s.SeedStudent("student-3", Seed{Teachers: 6, Orchestras: 3, Rehearsals: 12, TheoryLessons: 4, LessonSlots: 5, ExamRecords: 8})
}
