package cascade

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

const defaultBatchLimit = 50

// DeleteOptions describe who deletes and why.
type DeleteOptions struct {
	JobID       uuid.UUID
	Reason      string
	PerformedBy string
	Type        domain.DeletionType
	// Stop is polled between batch entities; nil never stops.
	Stop func() bool
}

// Engine snapshots, cascades, audits and restores students.
type Engine struct {
	students   repository.StudentRepository
	relations  repository.RelationRepository
	audits     repository.AuditRepository
	locks      repository.EntityLockStore
	publisher  notify.Publisher
	metrics    *metrics.Metrics
	registry   []domain.Relation
	batchLimit int
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a deletion engine over the student relation registry.
func NewEngine(
	students repository.StudentRepository,
	relations repository.RelationRepository,
	audits repository.AuditRepository,
	locks repository.EntityLockStore,
	publisher notify.Publisher,
	m *metrics.Metrics,
	batchLimit int,
	logger *zap.Logger,
) *Engine {
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	return &Engine{
		students:   students,
		relations:  relations,
		audits:     audits,
		locks:      locks,
		publisher:  publisher,
		metrics:    m,
		registry:   domain.StudentRelations,
		batchLimit: batchLimit,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot captures an active student and every document referencing it.
func (e *Engine) Snapshot(ctx context.Context, entityID string) (*domain.Snapshot, error) {
	st, err := e.students.GetStudent(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, domain.ErrEntityNotFound
	}

	snap := &domain.Snapshot{
		Student:    st.Clone(),
		Related:    make(map[string][]domain.RelatedSummary),
		CapturedAt: e.now(),
	}
	for _, rel := range e.registry {
		docs, err := e.relations.Related(ctx, rel, entityID)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", rel.Name, err)
		}
		if len(docs) > 0 {
			snap.Related[rel.Name] = docs
		}
	}
	return snap, nil
}

// Delete cascades one student. A write failure stops the cascade, leaves a
// partial audit record and returns a transient store error; the remaining
// references are left for orphan cleanup.
func (e *Engine) Delete(ctx context.Context, entityID string, opts DeleteOptions) (*domain.CascadeDeletionResult, error) {
	snap, err := e.Snapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if opts.Type == "" {
		opts.Type = domain.DeletionCascade
	}

	at := e.now()
	rec := &domain.DeletionAuditRecord{
		EntityID:     entityID,
		DeletionType: opts.Type,
		Reason:       opts.Reason,
		Snapshot:     snap,
		Operations:   []domain.CascadeOperation{},
		Status:       domain.AuditCompleted,
		PerformedBy:  opts.PerformedBy,
	}

	for _, rel := range e.registry {
		if len(snap.Related[rel.Name]) == 0 {
			continue
		}
		n, err := e.relations.Apply(ctx, rel, entityID, at)
		if err != nil {
			return nil, e.abort(ctx, rec, domain.TransientStoreError(rel.Collection, err))
		}
		rec.Operations = append(rec.Operations, domain.CascadeOperation{
			Collection:    rel.Name,
			OperationType: rel.Kind,
			AffectedCount: n,
			JobID:         opts.JobID,
		})
		e.metrics.DocumentsAffected.WithLabelValues(rel.Name, string(rel.Kind)).Add(float64(n))
	}

	if err := e.students.DeactivateStudent(ctx, entityID, at); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, e.abort(ctx, rec, err)
		}
		return nil, e.abort(ctx, rec, domain.TransientStoreError("students", err))
	}

	if err := e.writeAudit(ctx, rec); err != nil {
		return nil, domain.TransientStoreError("deletion_audits", err)
	}

	res := &domain.CascadeDeletionResult{
		EntityID:      entityID,
		AuditID:       rec.ID,
		Operations:    rec.Operations,
		TotalAffected: rec.TotalAffected(),
	}
	e.publisher.Publish(domain.EventCascadeDeletionCompleted, res)
	e.logger.Info("Cascade deletion completed",
		zap.String("entity_id", entityID),
		zap.String("audit_id", rec.ID.String()),
		zap.Int("affected", res.TotalAffected),
	)
	return res, nil
}

// abort records a partial audit entry and returns cause annotated with it.
func (e *Engine) abort(ctx context.Context, rec *domain.DeletionAuditRecord, cause error) error {
	rec.Status = domain.AuditPartial
	rec.Error = cause.Error()
	if err := e.writeAudit(ctx, rec); err != nil {
		e.logger.Error("Failed to write partial audit record",
			zap.String("entity_id", rec.EntityID),
			zap.Error(err),
		)
		return cause
	}
	e.logger.Warn("Cascade deletion stopped",
		zap.String("entity_id", rec.EntityID),
		zap.String("audit_id", rec.ID.String()),
		zap.Int("operations_done", len(rec.Operations)),
		zap.Error(cause),
	)
	return fmt.Errorf("cascade stopped after %d operations (audit %s): %w", len(rec.Operations), rec.ID, cause)
}

func (e *Engine) writeAudit(ctx context.Context, rec *domain.DeletionAuditRecord) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate UUIDv7: %w", err)
	}
	rec.ID = id
	rec.Timestamp = e.now()
	return e.audits.Create(ctx, rec)
}

// DeleteBatch deletes each id in turn. A failing id is reported and never
// blocks the others. When opts.Stop fires the remaining ids are skipped.
func (e *Engine) DeleteBatch(ctx context.Context, entityIDs []string, opts DeleteOptions) (*domain.BatchDeletionResult, error) {
	if len(entityIDs) > e.batchLimit {
		return nil, fmt.Errorf("%w: %d ids, limit %d", domain.ErrBatchTooLarge, len(entityIDs), e.batchLimit)
	}
	opts.Type = domain.DeletionBatchCascade
	holder := opts.JobID.String()

	res := &domain.BatchDeletionResult{
		Succeeded: []string{},
		Failed:    []domain.BatchFailure{},
		AuditIDs:  make(map[string]uuid.UUID),
	}
	for i, id := range entityIDs {
		if opts.Stop != nil && opts.Stop() {
			res.Cancelled = true
			res.Skipped = append([]string(nil), entityIDs[i:]...)
			e.logger.Info("Batch deletion stopped", zap.String("job_id", holder), zap.Int("skipped", len(res.Skipped)))
			break
		}

		auditID, err := e.deleteLocked(ctx, id, holder, opts)
		if err != nil {
			res.Failed = append(res.Failed, domain.BatchFailure{ID: id, Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		res.AuditIDs[id] = auditID
	}
	return res, nil
}

// deleteLocked holds the entity's deletion lock for the duration of one delete.
func (e *Engine) deleteLocked(ctx context.Context, entityID, holder string, opts DeleteOptions) (uuid.UUID, error) {
	key := repository.DeletionLockKey(entityID)
	ok, current, err := e.locks.Acquire(ctx, key, holder)
	if err != nil {
		return uuid.Nil, domain.TransientStoreError("entity_locks", err)
	}
	if !ok {
		return uuid.Nil, &domain.ConflictError{EntityID: entityID, JobID: current}
	}
	defer func() {
		if err := e.locks.Release(ctx, key, holder); err != nil {
			e.logger.Error("Failed to release entity lock", zap.String("entity_id", entityID), zap.Error(err))
		}
	}()

	res, err := e.Delete(ctx, entityID, opts)
	if err != nil {
		return uuid.Nil, err
	}
	return res.AuditID, nil
}

// Restore rebuilds a deleted student from an audit snapshot and replays the
// relation writes. Each audit record can be restored once.
func (e *Engine) Restore(ctx context.Context, entityID string, auditID uuid.UUID, actor domain.Actor, reason string) (*domain.RestoreResult, error) {
	key := repository.DeletionLockKey(entityID)
	holder := "restore:" + auditID.String()
	ok, current, err := e.locks.Acquire(ctx, key, holder)
	if err != nil {
		return nil, domain.TransientStoreError("entity_locks", err)
	}
	if !ok {
		return nil, &domain.ConflictError{EntityID: entityID, JobID: current}
	}
	defer func() {
		if err := e.locks.Release(ctx, key, holder); err != nil {
			e.logger.Error("Failed to release entity lock", zap.String("entity_id", entityID), zap.Error(err))
		}
	}()

	rec, err := e.audits.GetByID(ctx, auditID)
	if err != nil {
		return nil, err
	}
	switch {
	case rec.EntityID != entityID:
		return nil, domain.ErrAuditEntityMismatch
	case rec.Snapshot == nil || rec.Snapshot.Student == nil:
		return nil, domain.ErrNoSnapshot
	case rec.IsRestored():
		return nil, domain.ErrAlreadyRestored
	}

	existing, err := e.students.GetStudent(ctx, entityID)
	switch {
	case err == nil && existing.IsActive:
		return nil, domain.ErrEntityStillLive
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, domain.TransientStoreError("students", err)
	}

	// Relations go first and the student is reactivated last, so a failed
	// restore leaves the entity inactive and can be retried from the same record.
	student := rec.Snapshot.Student.Clone()
	restored := make(map[string]int)
	skipped := make(map[string][]string)
	for _, rel := range e.registry {
		ids := rec.Snapshot.DocumentIDs(rel.Name)
		if len(ids) == 0 {
			continue
		}
		relinked, err := e.relations.Reapply(ctx, rel, entityID, ids)
		if err != nil {
			return nil, domain.TransientStoreError(rel.Collection, err)
		}
		restored[rel.Name] = len(relinked)
		if missed := without(ids, relinked); len(missed) > 0 {
			skipped[rel.Name] = missed
			pruneBackReferences(student, rel, missed)
			e.logger.Warn("Restore skipped documents",
				zap.String("entity_id", entityID),
				zap.String("relation", rel.Name),
				zap.Strings("document_ids", missed),
			)
		}
	}

	if err := e.students.RestoreStudent(ctx, student); err != nil {
		return nil, domain.TransientStoreError("students", err)
	}

	at := e.now()
	if err := e.audits.MarkRestored(ctx, auditID, at, actor.ID); err != nil {
		return nil, err
	}

	res := &domain.RestoreResult{
		EntityID:   entityID,
		AuditID:    auditID,
		Restored:   restored,
		Skipped:    skipped,
		RestoredAt: at,
		RestoredBy: actor.ID,
	}
	e.publisher.Publish(domain.EventEntityRestored, res)
	e.logger.Info("Entity restored",
		zap.String("entity_id", entityID),
		zap.String("audit_id", auditID.String()),
		zap.String("by", actor.ID),
		zap.String("reason", reason),
	)
	return res, nil
}

// without returns the ids in all that are not in some, keeping order.
func without(all, some []string) []string {
	keep := make(map[string]struct{}, len(some))
	for _, id := range some {
		keep[id] = struct{}{}
	}
	var out []string
	for _, id := range all {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// pruneBackReferences drops ids the restore could not relink from the
// student's back-reference list for rel.
func pruneBackReferences(st *domain.Student, rel domain.Relation, ids []string) {
	drop := func(list []string) []string {
		return slices.DeleteFunc(list, func(id string) bool { return slices.Contains(ids, id) })
	}
	switch rel.BackField {
	case domain.BackFieldTeachers:
		st.TeacherIDs = drop(st.TeacherIDs)
	case domain.BackFieldOrchestras:
		st.OrchestraIDs = drop(st.OrchestraIDs)
	}
}
