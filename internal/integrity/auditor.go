package integrity

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Auditor finds and repairs references left behind by incomplete cascades.
type Auditor struct {
	students  repository.StudentRepository
	relations repository.RelationRepository
	registry  []domain.Relation
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditor creates an Auditor over the student relation registry.
func NewAuditor(students repository.StudentRepository, relations repository.RelationRepository, m *metrics.Metrics, logger *zap.Logger) *Auditor {
	return &Auditor{
		students:  students,
		relations: relations,
		registry:  domain.StudentRelations,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// scan holds every live link and the state of every student they point at.
type scan struct {
	links  map[string][]domain.Link
	states map[string]bool
	total  int
}

func (a *Auditor) scanLinks(ctx context.Context) (*scan, error) {
	sc := &scan{links: make(map[string][]domain.Link, len(a.registry))}
	seen := make(map[string]struct{})
	var ids []string
	for _, rel := range a.registry {
		links, err := a.relations.Links(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel.Name, err)
		}
		sc.links[rel.Name] = links
		sc.total += len(links)
		for _, l := range links {
			if _, ok := seen[l.EntityID]; !ok {
				seen[l.EntityID] = struct{}{}
				ids = append(ids, l.EntityID)
			}
		}
	}
	states, err := a.students.ActiveStates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load student states: %w", err)
	}
	sc.states = states
	return sc, nil
}

// orphanReason returns why a link is orphaned, or "" when it is healthy.
func (sc *scan) orphanReason(entityID string) string {
	active, known := sc.states[entityID]
	switch {
	case !known:
		return domain.OrphanMissing
	case !active:
		return domain.OrphanInactive
	}
	return ""
}

// CleanupOrphans clears every live link to a missing or inactive student by
// applying the relation's cascade operation to that document alone.
func (a *Auditor) CleanupOrphans(ctx context.Context, dryRun bool) (*domain.OrphanCleanupResult, error) {
	sc, err := a.scanLinks(ctx)
	if err != nil {
		return nil, err
	}

	res := &domain.OrphanCleanupResult{
		DryRun:       dryRun,
		LinksScanned: sc.total,
		ByCollection: make(map[string]int),
		Orphans:      []domain.OrphanedReference{},
	}
	at := a.now()
	for _, rel := range a.registry {
		for _, l := range sc.links[rel.Name] {
			reason := sc.orphanReason(l.EntityID)
			if reason == "" {
				continue
			}
			res.Found++
			res.ByCollection[rel.Name]++
			res.Orphans = append(res.Orphans, domain.OrphanedReference{
				Relation:   rel.Name,
				DocumentID: l.DocumentID,
				EntityID:   l.EntityID,
				Reason:     reason,
			})
			if dryRun {
				continue
			}
			n, err := a.relations.ApplyTo(ctx, rel, l.EntityID, l.DocumentID, at)
			if err != nil {
				a.metrics.OrphansCleaned.Add(float64(res.Cleaned))
				return res, domain.TransientStoreError(rel.Collection, err)
			}
			res.Cleaned += n
		}
	}

	a.metrics.OrphansCleaned.Add(float64(res.Cleaned))
	a.logger.Info("Orphan cleanup finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("scanned", res.LinksScanned),
		zap.Int("found", res.Found),
		zap.Int("cleaned", res.Cleaned),
	)
	return res, nil
}

// Validate checks both directions of every relation without writing.
func (a *Auditor) Validate(ctx context.Context) (*domain.IntegrityReport, error) {
	sc, err := a.scanLinks(ctx)
	if err != nil {
		return nil, err
	}
	active, err := a.students.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	byID := make(map[string]*domain.Student, len(active))
	for _, st := range active {
		byID[st.ID] = st
	}

	report := &domain.IntegrityReport{
		LinksChecked:    sc.total,
		EntitiesChecked: len(active),
		Issues:          []domain.IntegrityIssue{},
	}
	add := func(issue domain.IntegrityIssue) {
		report.Issues = append(report.Issues, issue)
		a.metrics.IntegrityIssues.WithLabelValues(string(issue.Type)).Inc()
	}

	for _, rel := range a.registry {
		linked := make(map[domain.Link]struct{}, len(sc.links[rel.Name]))
		for _, l := range sc.links[rel.Name] {
			linked[l] = struct{}{}
			if reason := sc.orphanReason(l.EntityID); reason != "" {
				add(domain.IntegrityIssue{
					Type:       domain.IssueOrphanedReference,
					Relation:   rel.Name,
					DocumentID: l.DocumentID,
					EntityID:   l.EntityID,
					Detail:     "student is " + reason,
				})
				continue
			}
			if rel.BackField == "" {
				continue
			}
			if st := byID[l.EntityID]; st != nil && !slices.Contains(st.BackReferences(rel.BackField), l.DocumentID) {
				add(domain.IntegrityIssue{
					Type:       domain.IssueMissingBackReference,
					Relation:   rel.Name,
					DocumentID: l.DocumentID,
					EntityID:   l.EntityID,
					Detail:     "student does not list the document in " + rel.BackField,
				})
			}
		}

		if rel.BackField == "" {
			continue
		}
		if err := a.checkBackReferences(ctx, rel, active, linked, add); err != nil {
			return nil, err
		}
	}

	a.logger.Info("Integrity validation finished",
		zap.Int("links", report.LinksChecked),
		zap.Int("students", report.EntitiesChecked),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

// checkBackReferences reports ids a student lists that do not point back.
func (a *Auditor) checkBackReferences(
	ctx context.Context,
	rel domain.Relation,
	students []*domain.Student,
	linked map[domain.Link]struct{},
	add func(domain.IntegrityIssue),
) error {
	var ids []string
	for _, st := range students {
		ids = append(ids, st.BackReferences(rel.BackField)...)
	}
	if len(ids) == 0 {
		return nil
	}
	docStates, err := a.relations.DocumentStates(ctx, rel, ids)
	if err != nil {
		return fmt.Errorf("load %s states: %w", rel.Name, err)
	}

	for _, st := range students {
		for _, docID := range st.BackReferences(rel.BackField) {
			var detail string
			docActive, known := docStates[docID]
			switch {
			case !known:
				detail = "document does not exist"
			case !docActive:
				detail = "document is inactive"
			default:
				if _, ok := linked[domain.Link{DocumentID: docID, EntityID: st.ID}]; !ok {
					detail = "document does not reference the student"
				}
			}
			if detail == "" {
				continue
			}
			add(domain.IntegrityIssue{
				Type:       domain.IssueDanglingBackReference,
				Relation:   rel.Name,
				DocumentID: docID,
				EntityID:   st.ID,
				Detail:     detail,
			})
		}
	}
	return nil
}
