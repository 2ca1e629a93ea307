package domain

import (
	"strings"
	"time"
)

// Student is the primary entity targeted by cascade deletion.
type Student struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email,omitempty"`
	Instrument   string     `json:"instrument,omitempty"`
	Grade        string     `json:"grade,omitempty"`
	TeacherIDs   []string   `json:"teacherIds"`
	OrchestraIDs []string   `json:"orchestraIds"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// FullName joins first and last name.
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Clone returns a deep copy.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	c := *s
	c.TeacherIDs = append([]string(nil), s.TeacherIDs...)
	c.OrchestraIDs = append([]string(nil), s.OrchestraIDs...)
	if s.DeletedAt != nil {
		t := *s.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// BackReferences returns the ids the student lists for the given back field.
func (s *Student) BackReferences(field string) []string {
	switch field {
	case BackFieldTeachers:
		return s.TeacherIDs
	case BackFieldOrchestras:
		return s.OrchestraIDs
	}
	return nil
}
