package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

const (
	defaultBatchLimit = 50
	defaultRetention  = 1000
)

// Handler executes one job type.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) (domain.JobResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.Job) (domain.JobResult, error)

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
	return f(ctx, job)
}

// Config tunes admission and execution.
type Config struct {
	Workers    int
	BatchLimit int
	// Timeout bounds a single handler run. Zero disables it.
	Timeout time.Duration
	// Retention is how many finished jobs stay in memory.
	Retention int
}

// JobRequest is the input of AddJob.
type JobRequest struct {
	Payload  domain.Payload
	Priority domain.Priority
	Actor    domain.Actor
}

// Stats are the process-wide processing counters.
type Stats struct {
	JobsProcessed         int64   `json:"jobsProcessed"`
	JobsFailed            int64   `json:"jobsFailed"`
	AverageProcessingTime float64 `json:"averageProcessingTime"`
	OrphansCleanedUp      int64   `json:"orphansCleanedUp"`
	IntegrityIssuesFound  int64   `json:"integrityIssuesFound"`
}

// QueueStatus is a point-in-time view of the scheduler.
type QueueStatus struct {
	Queued      map[domain.Priority]int `json:"queued"`
	TotalQueued int                     `json:"totalQueued"`
	Active      int                     `json:"active"`
	ActiveJobs  []uuid.UUID             `json:"activeJobs"`
	Workers     int                     `json:"workers"`
	Metrics     Stats                   `json:"metrics"`
}

type runState struct {
	stop atomic.Bool
}

// Scheduler owns the priority queue, the active-job registry and the
// processing metrics. Workers pull from it with Next and execute with Run.
type Scheduler struct {
	mu       sync.Mutex
	queues   map[domain.Priority][]*domain.Job
	jobs     map[uuid.UUID]*domain.Job
	running  map[uuid.UUID]*runState
	finished []uuid.UUID
	stats    Stats
	handlers map[domain.JobType]Handler
	wake     chan struct{}

	repo      repository.JobRepository
	locks     repository.EntityLockStore
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

// New creates a Scheduler. Handlers are attached with Register before workers start.
func New(
	cfg Config,
	repo repository.JobRepository,
	locks repository.EntityLockStore,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scheduler {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	queues := make(map[domain.Priority][]*domain.Job, len(domain.Priorities))
	for _, p := range domain.Priorities {
		queues[p] = nil
	}
	return &Scheduler{
		queues:    queues,
		jobs:      make(map[uuid.UUID]*domain.Job),
		running:   make(map[uuid.UUID]*runState),
		handlers:  make(map[domain.JobType]Handler),
		wake:      make(chan struct{}, 1),
		repo:      repo,
		locks:     locks,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register attaches the handler for a job type.
func (s *Scheduler) Register(t domain.JobType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = h
}

// BatchLimit returns the maximum number of ids in a batch job.
func (s *Scheduler) BatchLimit() int { return s.cfg.BatchLimit }

func (s *Scheduler) validate(req JobRequest) (domain.Priority, error) {
	if req.Payload == nil {
		return "", domain.ErrInvalidJobType
	}
	t := req.Payload.JobType()
	s.mu.Lock()
	_, ok := s.handlers[t]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: no handler for %s", domain.ErrInvalidJobType, t)
	}
	if err := req.Payload.Validate(); err != nil {
		return "", err
	}
	if p, ok := req.Payload.(*domain.BatchCascadeDeletionPayload); ok && len(p.EntityIDs) > s.cfg.BatchLimit {
		return "", fmt.Errorf("%w: %d ids, limit %d", domain.ErrBatchTooLarge, len(p.EntityIDs), s.cfg.BatchLimit)
	}
	if t.AdminOnly() && !req.Actor.IsAdmin() {
		return "", domain.ErrAdminRequired
	}
	return domain.ParsePriority(string(req.Priority))
}

// AddJob validates, admits and enqueues a job. It never waits for execution.
func (s *Scheduler) AddJob(ctx context.Context, req JobRequest) (*domain.Job, error) {
	priority, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}
	job := &domain.Job{
		ID:          id,
		Type:        req.Payload.JobType(),
		Payload:     req.Payload,
		Priority:    priority,
		State:       domain.StateQueued,
		RequestedBy: req.Actor.ID,
		CreatedAt:   s.now(),
	}

	entityID, exclusive := job.TargetEntity()
	if exclusive {
		ok, holder, err := s.locks.Acquire(ctx, repository.DeletionLockKey(entityID), job.ID.String())
		if err != nil {
			return nil, domain.TransientStoreError("entity_locks", err)
		}
		if !ok {
			return nil, &domain.ConflictError{EntityID: entityID, JobID: holder}
		}
	}

	if err := s.repo.Create(ctx, job); err != nil {
		s.logger.Error("Failed to persist job", zap.Error(err), zap.String("job_id", id.String()))
		if exclusive {
			s.releaseLock(ctx, job)
		}
		return nil, domain.TransientStoreError("cascade_jobs", err)
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.queues[priority] = append(s.queues[priority], job)
	s.metrics.QueueDepth.WithLabelValues(string(priority)).Set(float64(len(s.queues[priority])))
	snapshot := job.Clone()
	s.mu.Unlock()

	s.signal()
	s.publishState(snapshot)

	s.logger.Info("Job queued",
		zap.String("job_id", id.String()),
		zap.String("type", string(job.Type)),
		zap.String("priority", string(priority)),
	)
	return snapshot, nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pop removes the next job in strict priority order. Caller holds mu.
func (s *Scheduler) pop() *domain.Job {
	for _, p := range domain.Priorities {
		q := s.queues[p]
		if len(q) == 0 {
			continue
		}
		job := q[0]
		q[0] = nil
		s.queues[p] = q[1:]
		s.metrics.QueueDepth.WithLabelValues(string(p)).Set(float64(len(s.queues[p])))
		return job
	}
	return nil
}

func (s *Scheduler) queuedLocked() int {
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}

// Next blocks until a job is available, marks it active and returns it.
func (s *Scheduler) Next(ctx context.Context) (*domain.Job, error) {
	for {
		s.mu.Lock()
		job := s.pop()
		if job != nil {
			err := job.Transition(domain.StateActive, s.now())
			s.running[job.ID] = &runState{}
			more := s.queuedLocked() > 0
			snapshot := job.Clone()
			s.mu.Unlock()

			if err != nil {
				return nil, err
			}
			if more {
				s.signal()
			}
			s.persist(ctx, snapshot)
			s.publishState(snapshot)
			return snapshot, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.wake:
		}
	}
}

// Run executes an active job to completion. Handler errors and panics are
// recorded on the job; Run never propagates them. The handler context is
// detached from ctx so shutdown does not abort a cascade midway.
func (s *Scheduler) Run(ctx context.Context, job *domain.Job) {
	s.mu.Lock()
	h := s.handlers[job.Type]
	rs := s.running[job.ID]
	s.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.cfg.Timeout)
		defer cancel()
	}
	if rs != nil {
		runCtx = context.WithValue(runCtx, stopKey{}, &rs.stop)
	}

	result, err := invoke(runCtx, h, job)
	s.finish(context.WithoutCancel(ctx), job.ID, result, err)
}

func invoke(ctx context.Context, h Handler, job *domain.Job) (result domain.JobResult, err error) {
	if h == nil {
		return nil, fmt.Errorf("%w: no handler for %s", domain.ErrInvalidJobType, job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, job)
}

func (s *Scheduler) finish(ctx context.Context, id uuid.UUID, result domain.JobResult, runErr error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	next := domain.StateCompleted
	if runErr != nil {
		next = domain.StateFailed
		job.Error = runErr.Error()
	}
	job.Result = result
	if err := job.Transition(next, s.now()); err != nil {
		s.mu.Unlock()
		s.logger.Error("Invalid job transition", zap.Error(err))
		return
	}
	delete(s.running, id)
	s.record(job)
	s.retain(id)
	snapshot := job.Clone()
	s.mu.Unlock()

	if _, exclusive := snapshot.TargetEntity(); exclusive {
		s.releaseLock(ctx, snapshot)
	}
	s.persist(ctx, snapshot)
	s.publishState(snapshot)

	s.metrics.JobsTotal.WithLabelValues(string(snapshot.Type), string(snapshot.State)).Inc()
	s.metrics.JobDuration.WithLabelValues(string(snapshot.Type)).Observe(snapshot.Duration().Seconds())

	if runErr != nil {
		s.logger.Error("Job failed",
			zap.String("job_id", id.String()),
			zap.String("type", string(snapshot.Type)),
			zap.Error(runErr),
		)
		return
	}
	s.logger.Info("Job completed",
		zap.String("job_id", id.String()),
		zap.String("type", string(snapshot.Type)),
		zap.Duration("duration", snapshot.Duration()),
	)
}

// record updates the counters for a job that ran. Caller holds mu.
func (s *Scheduler) record(job *domain.Job) {
	s.stats.JobsProcessed++
	if job.State == domain.StateFailed {
		s.stats.JobsFailed++
	}
	ms := float64(job.Duration()) / float64(time.Millisecond)
	s.stats.AverageProcessingTime += (ms - s.stats.AverageProcessingTime) / float64(s.stats.JobsProcessed)

	switch r := job.Result.(type) {
	case *domain.OrphanCleanupResult:
		s.stats.OrphansCleanedUp += int64(r.Cleaned)
	case *domain.IntegrityReport:
		s.stats.IntegrityIssuesFound += int64(len(r.Issues))
	}
}

// retain keeps at most cfg.Retention finished jobs in memory. Caller holds mu.
func (s *Scheduler) retain(id uuid.UUID) {
	s.finished = append(s.finished, id)
	for len(s.finished) > s.cfg.Retention {
		delete(s.jobs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

// Cancel fails a queued job, or asks an active batch to stop after the
// current entity. Other active jobs cannot be cancelled.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrJobNotCancellable
	}
	if !actor.IsAdmin() && actor.ID != job.RequestedBy {
		s.mu.Unlock()
		return nil, domain.ErrAdminRequired
	}

	switch job.State {
	case domain.StateQueued:
		s.removeQueued(job)
		job.Error = domain.ErrJobCancelled.Error()
		_ = job.Transition(domain.StateFailed, s.now())
		s.retain(id)
		snapshot := job.Clone()
		s.mu.Unlock()

		if _, exclusive := snapshot.TargetEntity(); exclusive {
			s.releaseLock(ctx, snapshot)
		}
		s.persist(ctx, snapshot)
		s.publishState(snapshot)
		s.metrics.JobsTotal.WithLabelValues(string(snapshot.Type), "cancelled").Inc()
		s.logger.Info("Job cancelled", zap.String("job_id", id.String()), zap.String("by", actor.ID))
		return snapshot, nil

	case domain.StateActive:
		rs := s.running[id]
		if job.Type != domain.JobBatchCascadeDeletion || rs == nil {
			s.mu.Unlock()
			return nil, domain.ErrJobNotCancellable
		}
		rs.stop.Store(true)
		snapshot := job.Clone()
		s.mu.Unlock()
		s.logger.Info("Batch stop requested", zap.String("job_id", id.String()), zap.String("by", actor.ID))
		return snapshot, nil
	}

	s.mu.Unlock()
	return nil, domain.ErrJobNotCancellable
}

// removeQueued drops job from its tier. Caller holds mu.
func (s *Scheduler) removeQueued(job *domain.Job) {
	q := s.queues[job.Priority]
	for i, j := range q {
		if j.ID == job.ID {
			s.queues[job.Priority] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	s.metrics.QueueDepth.WithLabelValues(string(job.Priority)).Set(float64(len(s.queues[job.Priority])))
}

// Get returns a job from memory, falling back to the job repository.
func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		snapshot := job.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Position returns the 1-based dequeue position of a queued job.
func (s *Scheduler) Position(id uuid.UUID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := 0
	for _, p := range domain.Priorities {
		for _, j := range s.queues[p] {
			pos++
			if j.ID == id {
				return pos, true
			}
		}
	}
	return 0, false
}

// QueueStatus reports queued counts per tier, active jobs and metrics.
func (s *Scheduler) QueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := QueueStatus{
		Queued:     make(map[domain.Priority]int, len(domain.Priorities)),
		Active:     len(s.running),
		ActiveJobs: make([]uuid.UUID, 0, len(s.running)),
		Workers:    s.cfg.Workers,
		Metrics:    s.stats,
	}
	for _, p := range domain.Priorities {
		st.Queued[p] = len(s.queues[p])
		st.TotalQueued += len(s.queues[p])
	}
	for id := range s.running {
		st.ActiveJobs = append(st.ActiveJobs, id)
	}
	return st
}

// Stats returns the processing counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Recover fails jobs a previous process left queued or active and frees
// their entity locks. Queued work is not resumed.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	jobs, err := s.repo.ListUnfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		job.Error = domain.ErrInterrupted.Error()
		if err := job.Transition(domain.StateFailed, s.now()); err != nil {
			continue
		}
		if _, exclusive := job.TargetEntity(); exclusive {
			s.releaseLock(ctx, job)
		}
		s.persist(ctx, job)
		s.logger.Warn("Job interrupted by restart", zap.String("job_id", job.ID.String()), zap.String("type", string(job.Type)))
	}
	return len(jobs), nil
}

func (s *Scheduler) releaseLock(ctx context.Context, job *domain.Job) {
	entityID, _ := job.TargetEntity()
	if err := s.locks.Release(ctx, repository.DeletionLockKey(entityID), job.ID.String()); err != nil {
		s.logger.Error("Failed to release entity lock",
			zap.String("job_id", job.ID.String()),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// KeepLocks renews the entity lock of every queued or active cascade job
// each interval until ctx ends. Stores with expiring locks need it so a job
// that waits or runs longer than the lock TTL keeps its entity.
func (s *Scheduler) KeepLocks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshLocks(ctx)
		}
	}
}

// RefreshLocks extends the locks held by unfinished cascade jobs once and
// returns how many were renewed.
func (s *Scheduler) RefreshLocks(ctx context.Context) int {
	s.mu.Lock()
	held := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if _, exclusive := job.TargetEntity(); exclusive && !job.State.IsTerminal() {
			held = append(held, job)
		}
	}
	s.mu.Unlock()

	renewed := 0
	for _, job := range held {
		entityID, _ := job.TargetEntity()
		ok, err := s.locks.Extend(ctx, repository.DeletionLockKey(entityID), job.ID.String())
		switch {
		case err != nil:
			s.logger.Warn("Failed to extend entity lock",
				zap.String("job_id", job.ID.String()),
				zap.String("entity_id", entityID),
				zap.Error(err),
			)
		case !ok:
			s.logger.Error("Entity lock lost",
				zap.String("job_id", job.ID.String()),
				zap.String("entity_id", entityID),
			)
		default:
			renewed++
		}
	}
	return renewed
}

func (s *Scheduler) persist(ctx context.Context, job *domain.Job) {
	if err := s.repo.Update(ctx, job); err != nil {
		s.logger.Error("Failed to persist job state",
			zap.String("job_id", job.ID.String()),
			zap.String("state", string(job.State)),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) publishState(job *domain.Job) {
	entityID, _ := job.TargetEntity()
	s.publisher.Publish(domain.EventJobStateChanged, domain.JobStateChange{
		JobID:  job.ID.String(),
		Type:   job.Type,
		State:  job.State,
		Error:  job.Error,
		Entity: entityID,
	})
}
