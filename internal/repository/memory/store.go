// Package memory provides in-process implementations of every repository
// interface. They back STORE_DRIVER=memory and serve as fakes in tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

var (
	_ repository.StudentRepository  = (*Store)(nil)
	_ repository.RelationRepository = (*Store)(nil)
)

// Document is a related record. Refs holds the student ids in the relation
// field; single-pointer relations keep at most one element.
type Document struct {
	ID         string
	Label      string
	Refs       []string
	Active     bool
	ArchivedAt *time.Time
}

// Store holds students and related collections.
type Store struct {
	mu          sync.RWMutex
	students    map[string]*domain.Student
	collections map[string]map[string]*Document

	// Failure hooks for tests. A non-nil return aborts the call.
	CountErr   func(rel domain.Relation, entityID string) error
	ApplyErr   func(rel domain.Relation, entityID string) error
	ReapplyErr func(rel domain.Relation, entityID string) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students:    make(map[string]*domain.Student),
		collections: make(map[string]map[string]*Document),
	}
}

// PutStudent inserts or replaces a student.
func (s *Store) PutStudent(st *domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st.Clone()
}

// PutDocument inserts or replaces a document in the relation's collection.
func (s *Store) PutDocument(rel domain.Relation, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[rel.Collection]
	if !ok {
		docs = make(map[string]*Document)
		s.collections[rel.Collection] = docs
	}
	d := doc
	d.Refs = append([]string(nil), doc.Refs...)
	docs[doc.ID] = &d
}

// Document returns a copy of one document.
func (s *Store) Document(rel domain.Relation, id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[rel.Collection][id]
	if !ok {
		return Document{}, false
	}
	c := *d
	c.Refs = append([]string(nil), d.Refs...)
	return c, true
}

func (s *Store) GetStudent(_ context.Context, id string) (*domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return st.Clone(), nil
}

func (s *Store) DeactivateStudent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok || !st.IsActive {
		return domain.ErrEntityNotFound
	}
	st.IsActive = false
	st.DeletedAt = &at
	return nil
}

func (s *Store) RestoreStudent(_ context.Context, st *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := st.Clone()
	c.IsActive = true
	c.DeletedAt = nil
	s.students[c.ID] = c
	return nil
}

func (s *Store) ActiveStates(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if st, ok := s.students[id]; ok {
			out[id] = st.IsActive
		}
	}
	return out, nil
}

func (s *Store) ListActive(_ context.Context) ([]*domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Student
	for _, st := range s.students {
		if st.IsActive {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func live(rel domain.Relation, d *Document, entityID string) bool {
	if rel.ActiveOnly() && !d.Active {
		return false
	}
	return slices.Contains(d.Refs, entityID)
}

// sortedDocs must be called with the lock held.
func (s *Store) sortedDocs(rel domain.Relation) []*Document {
	docs := make([]*Document, 0, len(s.collections[rel.Collection]))
	for _, d := range s.collections[rel.Collection] {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (s *Store) Count(_ context.Context, rel domain.Relation, entityID string) (int, error) {
	if s.CountErr != nil {
		if err := s.CountErr(rel, entityID); err != nil {
			return 0, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.collections[rel.Collection] {
		if live(rel, d, entityID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Related(_ context.Context, rel domain.Relation, entityID string) ([]domain.RelatedSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RelatedSummary
	for _, d := range s.sortedDocs(rel) {
		if live(rel, d, entityID) {
			out = append(out, domain.RelatedSummary{ID: d.ID, Label: d.Label, Field: rel.Field, Kind: rel.Kind})
		}
	}
	return out, nil
}

// cascade must be called with the write lock held.
func cascade(rel domain.Relation, d *Document, entityID string, at time.Time) {
	switch rel.Kind {
	case domain.MembershipRemoval:
		d.Refs = slices.DeleteFunc(d.Refs, func(id string) bool { return id == entityID })
	case domain.ReferenceRemoval:
		d.Refs = nil
	case domain.DataArchival:
		d.Active = false
		d.ArchivedAt = &at
	}
}

func (s *Store) Apply(_ context.Context, rel domain.Relation, entityID string, at time.Time) (int, error) {
	if s.ApplyErr != nil {
		if err := s.ApplyErr(rel, entityID); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.collections[rel.Collection] {
		if live(rel, d, entityID) {
			cascade(rel, d, entityID, at)
			n++
		}
	}
	return n, nil
}

func (s *Store) ApplyTo(_ context.Context, rel domain.Relation, entityID, documentID string, at time.Time) (int, error) {
	if s.ApplyErr != nil {
		if err := s.ApplyErr(rel, entityID); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.collections[rel.Collection][documentID]
	if !ok || !live(rel, d, entityID) {
		return 0, nil
	}
	cascade(rel, d, entityID, at)
	return 1, nil
}

func (s *Store) Reapply(_ context.Context, rel domain.Relation, entityID string, documentIDs []string) ([]string, error) {
	if s.ReapplyErr != nil {
		if err := s.ReapplyErr(rel, entityID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var relinked []string
	for _, id := range documentIDs {
		d, ok := s.collections[rel.Collection][id]
		if !ok {
			continue
		}
		switch rel.Kind {
		case domain.MembershipRemoval:
			if !slices.Contains(d.Refs, entityID) {
				d.Refs = append(d.Refs, entityID)
			}
		case domain.ReferenceRemoval:
			if !pointerFree(d, entityID) {
				continue
			}
			d.Refs = []string{entityID}
		case domain.DataArchival:
			if !pointerFree(d, entityID) {
				continue
			}
			d.Refs = []string{entityID}
			d.Active = true
			d.ArchivedAt = nil
		}
		relinked = append(relinked, id)
	}
	return relinked, nil
}

// pointerFree reports whether a single-pointer document is empty or already
// points at entityID.
func pointerFree(d *Document, entityID string) bool {
	return len(d.Refs) == 0 || (len(d.Refs) == 1 && d.Refs[0] == entityID)
}

func (s *Store) Links(_ context.Context, rel domain.Relation) ([]domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Link
	for _, d := range s.sortedDocs(rel) {
		if rel.ActiveOnly() && !d.Active {
			continue
		}
		for _, ref := range d.Refs {
			out = append(out, domain.Link{DocumentID: d.ID, EntityID: ref})
		}
	}
	return out, nil
}

func (s *Store) DocumentStates(_ context.Context, rel domain.Relation, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if d, ok := s.collections[rel.Collection][id]; ok {
			out[id] = d.Active
		}
	}
	return out, nil
}
