package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/memory"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/mock"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

var (
	admin   = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	teacher = domain.Actor{ID: "teacher-1", Role: "teacher"}
)

func noop(context.Context, *domain.Job) (domain.JobResult, error) { return nil, nil }

type harness struct {
	sched *scheduler.Scheduler
	repo  *mock.MockJobRepository
	locks *memory.LockStore
	pub   *mock.MockPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:  mock.NewMockJobRepository(),
		locks: memory.NewLockStore(),
		pub:   mock.NewMockPublisher(),
	}
	h.sched = scheduler.New(scheduler.Config{Workers: 1, BatchLimit: 50}, h.repo, h.locks, h.pub,
		metrics.New(prometheus.NewRegistry()), zap.NewNop())
	for _, jt := range []domain.JobType{
		domain.JobCascadeDeletion,
		domain.JobBatchCascadeDeletion,
		domain.JobOrphanedReferenceCleanup,
		domain.JobIntegrityValidation,
	} {
		h.sched.Register(jt, scheduler.HandlerFunc(noop))
	}
	return h
}

func deletion(id string) *domain.CascadeDeletionPayload {
	return &domain.CascadeDeletionPayload{EntityID: id}
}

func (h *harness) add(t *testing.T, p domain.Payload, prio domain.Priority) *domain.Job {
	t.Helper()
	job, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: p, Priority: prio, Actor: admin})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	return job
}

func (h *harness) next(t *testing.T) *domain.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := h.sched.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return job
}

func TestAddJob_StrictPriorityFIFO(t *testing.T) {
	h := newHarness(t)
	low := h.add(t, deletion("a"), domain.PriorityLow)
	high1 := h.add(t, deletion("b"), domain.PriorityHigh)
	medium := h.add(t, deletion("c"), domain.PriorityMedium)
	high2 := h.add(t, deletion("d"), domain.PriorityHigh)

	if pos, ok := h.sched.Position(low.ID); !ok || pos != 4 {
		t.Errorf("expected low job at position 4, got %d", pos)
	}

	for i, want := range []uuid.UUID{high1.ID, high2.ID, medium.ID, low.ID} {
		got := h.next(t)
		if got.ID != want {
			t.Fatalf("dequeue %d: expected %s, got %s", i, want, got.ID)
		}
		if got.State != domain.StateActive || got.StartedAt == nil {
			t.Errorf("expected active job with start time, got %+v", got)
		}
	}
}

func TestAddJob_DefaultsToMedium(t *testing.T) {
	h := newHarness(t)
	job := h.add(t, deletion("a"), "")
	if job.Priority != domain.PriorityMedium {
		t.Errorf("expected medium, got %s", job.Priority)
	}
	_, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("b"), Priority: "urgent", Actor: admin})
	if !errors.Is(err, domain.ErrInvalidPriority) {
		t.Errorf("expected invalid priority, got %v", err)
	}
}

func TestAddJob_DuplicateEntityConflicts(t *testing.T) {
	h := newHarness(t)
	first := h.add(t, deletion("s1"), domain.PriorityMedium)

	_, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("s1"), Actor: admin})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflict.JobID != first.ID.String() {
		t.Errorf("expected original job id %s, got %s", first.ID, conflict.JobID)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Error("conflict must match ErrConflict")
	}

	// Still conflicts while active.
	job := h.next(t)
	if _, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("s1"), Actor: admin}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict while active, got %v", err)
	}

	h.sched.Run(context.Background(), job)
	if _, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("s1"), Actor: admin}); err != nil {
		t.Errorf("expected resubmission after completion to succeed, got %v", err)
	}
}

func TestAddJob_ConcurrentDuplicatesAdmitOne(t *testing.T) {
	h := newHarness(t)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []uuid.UUID
		holders  []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("s1"), Actor: admin})
			mu.Lock()
			defer mu.Unlock()
			var conflict *domain.ConflictError
			switch {
			case err == nil:
				admitted = append(admitted, job.ID)
			case errors.As(err, &conflict):
				holders = append(holders, conflict.JobID)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(admitted) != 1 {
		t.Fatalf("expected exactly one admitted job, got %d", len(admitted))
	}
	for _, holder := range holders {
		if holder != admitted[0].String() {
			t.Errorf("conflict names %s, expected %s", holder, admitted[0])
		}
	}
}

func TestAddJob_ValidationQueuesNothing(t *testing.T) {
	h := newHarness(t)
	created := 0
	h.repo.CreateFunc = func(context.Context, *domain.Job) error {
		created++
		return nil
	}

	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}

	tests := []struct {
		name    string
		req     scheduler.JobRequest
		wantErr error
	}{
		{"oversized batch", scheduler.JobRequest{Payload: &domain.BatchCascadeDeletionPayload{EntityIDs: ids}, Actor: admin}, domain.ErrBatchTooLarge},
		{"empty batch", scheduler.JobRequest{Payload: &domain.BatchCascadeDeletionPayload{}, Actor: admin}, domain.ErrEmptyBatch},
		{"duplicate ids", scheduler.JobRequest{Payload: &domain.BatchCascadeDeletionPayload{EntityIDs: []string{"a", "a"}}, Actor: admin}, domain.ErrDuplicateBatchID},
		{"blank entity", scheduler.JobRequest{Payload: deletion("  "), Actor: admin}, domain.ErrEmptyEntityID},
		{"non-admin cleanup", scheduler.JobRequest{Payload: &domain.OrphanCleanupPayload{}, Actor: teacher}, domain.ErrAdminRequired},
		{"non-admin validation", scheduler.JobRequest{Payload: &domain.IntegrityValidationPayload{}, Actor: teacher}, domain.ErrUnauthorized},
		{"missing payload", scheduler.JobRequest{Actor: admin}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.sched.AddJob(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if created != 0 {
		t.Errorf("expected nothing persisted, got %d creates", created)
	}
	if st := h.sched.QueueStatus(); st.TotalQueued != 0 {
		t.Errorf("expected empty queue, got %d", st.TotalQueued)
	}
}

func TestAddJob_PersistFailureReleasesLock(t *testing.T) {
	h := newHarness(t)
	h.repo.CreateFunc = func(context.Context, *domain.Job) error { return errors.New("db down") }

	_, err := h.sched.AddJob(context.Background(), scheduler.JobRequest{Payload: deletion("s1"), Actor: admin})
	if !errors.Is(err, domain.ErrTransientStore) {
		t.Fatalf("expected transient store error, got %v", err)
	}
	if h.locks.Held() != 0 {
		t.Error("expected entity lock released after failed persist")
	}
}

func TestRun_RecordsOutcomeAndStats(t *testing.T) {
	h := newHarness(t)
	h.sched.Register(domain.JobIntegrityValidation, scheduler.HandlerFunc(func(context.Context, *domain.Job) (domain.JobResult, error) {
		return &domain.IntegrityReport{Issues: []domain.IntegrityIssue{{Type: domain.IssueOrphanedReference}}}, nil
	}))
	h.sched.Register(domain.JobOrphanedReferenceCleanup, scheduler.HandlerFunc(func(context.Context, *domain.Job) (domain.JobResult, error) {
		return nil, errors.New("scan failed")
	}))
	h.sched.Register(domain.JobCascadeDeletion, scheduler.HandlerFunc(func(context.Context, *domain.Job) (domain.JobResult, error) {
		panic("boom")
	}))

	ok := h.add(t, &domain.IntegrityValidationPayload{}, domain.PriorityHigh)
	bad := h.add(t, &domain.OrphanCleanupPayload{}, domain.PriorityMedium)
	panicky := h.add(t, deletion("s1"), domain.PriorityLow)

	for i := 0; i < 3; i++ {
		h.sched.Run(context.Background(), h.next(t))
	}

	got, _ := h.sched.Get(context.Background(), ok.ID)
	if got.State != domain.StateCompleted || got.Result == nil || got.CompletedAt == nil {
		t.Errorf("expected completed job with result, got %+v", got)
	}
	got, _ = h.sched.Get(context.Background(), bad.ID)
	if got.State != domain.StateFailed || got.Error != "scan failed" {
		t.Errorf("expected failed job, got %+v", got)
	}
	got, _ = h.sched.Get(context.Background(), panicky.ID)
	if got.State != domain.StateFailed || got.Error == "" {
		t.Errorf("expected panic recorded as failure, got %+v", got)
	}
	if h.locks.Held() != 0 {
		t.Error("expected entity lock released after failure")
	}

	stats := h.sched.Stats()
	if stats.JobsProcessed != 3 || stats.JobsFailed != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.IntegrityIssuesFound != 1 {
		t.Errorf("expected 1 integrity issue counted, got %d", stats.IntegrityIssuesFound)
	}

	states := h.repo.StateUpdates()
	if len(states) != 6 {
		t.Errorf("expected 6 persisted transitions, got %v", states)
	}
	if n := len(h.pub.OfType(domain.EventJobStateChanged)); n != 9 {
		t.Errorf("expected 9 state events, got %d", n)
	}
}

func TestRun_DetachedFromShutdown(t *testing.T) {
	h := newHarness(t)
	var handlerErr error
	h.sched.Register(domain.JobIntegrityValidation, scheduler.HandlerFunc(func(ctx context.Context, _ *domain.Job) (domain.JobResult, error) {
		handlerErr = ctx.Err()
		return nil, nil
	}))
	h.add(t, &domain.IntegrityValidationPayload{}, domain.PriorityHigh)
	job := h.next(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.sched.Run(ctx, job)

	if handlerErr != nil {
		t.Errorf("handler saw cancelled context: %v", handlerErr)
	}
	if got, _ := h.sched.Get(context.Background(), job.ID); got.State != domain.StateCompleted {
		t.Errorf("expected completed, got %s", got.State)
	}
}

func TestCancel_QueuedJob(t *testing.T) {
	h := newHarness(t)
	job := h.add(t, deletion("s1"), domain.PriorityMedium)

	if _, err := h.sched.Cancel(context.Background(), job.ID, teacher); !errors.Is(err, domain.ErrAdminRequired) {
		t.Errorf("expected another user's cancel to be refused, got %v", err)
	}

	cancelled, err := h.sched.Cancel(context.Background(), job.ID, admin)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.State != domain.StateFailed || cancelled.Error != domain.ErrJobCancelled.Error() {
		t.Errorf("expected failed/cancelled, got %s %q", cancelled.State, cancelled.Error)
	}
	if h.locks.Held() != 0 {
		t.Error("expected lock released")
	}
	if st := h.sched.QueueStatus(); st.TotalQueued != 0 {
		t.Errorf("expected empty queue, got %d", st.TotalQueued)
	}
	if _, err := h.sched.Cancel(context.Background(), job.ID, admin); !errors.Is(err, domain.ErrJobNotCancellable) {
		t.Errorf("expected not cancellable, got %v", err)
	}
}

func TestCancel_ActiveSingleDeletionRefused(t *testing.T) {
	h := newHarness(t)
	h.add(t, deletion("s1"), domain.PriorityMedium)
	job := h.next(t)

	if _, err := h.sched.Cancel(context.Background(), job.ID, admin); !errors.Is(err, domain.ErrJobNotCancellable) {
		t.Errorf("expected not cancellable, got %v", err)
	}
}

func TestCancel_ActiveBatchStopsBetweenEntities(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	proceed := make(chan struct{})
	h.sched.Register(domain.JobBatchCascadeDeletion, scheduler.HandlerFunc(func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
		close(started)
		<-proceed
		res := &domain.BatchDeletionResult{Succeeded: []string{"a"}}
		if scheduler.StopRequested(ctx) {
			res.Cancelled = true
			res.Skipped = []string{"b"}
		}
		return res, nil
	}))

	h.add(t, &domain.BatchCascadeDeletionPayload{EntityIDs: []string{"a", "b"}}, domain.PriorityMedium)
	job := h.next(t)

	done := make(chan struct{})
	go func() {
		h.sched.Run(context.Background(), job)
		close(done)
	}()
	<-started

	if _, err := h.sched.Cancel(context.Background(), job.ID, admin); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(proceed)
	<-done

	got, _ := h.sched.Get(context.Background(), job.ID)
	res, ok := got.Result.(*domain.BatchDeletionResult)
	if !ok || !res.Cancelled || len(res.Skipped) != 1 {
		t.Errorf("expected stopped batch result, got %+v", got.Result)
	}
}

func TestGet_FallsBackToRepository(t *testing.T) {
	h := newHarness(t)
	old := &domain.Job{ID: uuid.New(), Type: domain.JobIntegrityValidation, State: domain.StateCompleted}
	h.repo.Seed(old)

	got, err := h.sched.Get(context.Background(), old.ID)
	if err != nil || got.ID != old.ID {
		t.Errorf("expected job from repository, got %v %v", got, err)
	}
	if _, err := h.sched.Get(context.Background(), uuid.New()); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected job not found, got %v", err)
	}
}

func TestRecover_FailsUnfinishedJobs(t *testing.T) {
	h := newHarness(t)
	queued := &domain.Job{ID: uuid.New(), Type: domain.JobCascadeDeletion, Payload: deletion("s1"), State: domain.StateQueued}
	active := &domain.Job{ID: uuid.New(), Type: domain.JobIntegrityValidation, State: domain.StateActive}
	h.repo.Seed(queued)
	h.repo.Seed(active)
	if ok, _, _ := h.locks.Acquire(context.Background(), "cascadeDeletion:s1", queued.ID.String()); !ok {
		t.Fatal("failed to seed lock")
	}

	n, err := h.sched.Recover(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 recovered, got %d %v", n, err)
	}
	for _, id := range []uuid.UUID{queued.ID, active.ID} {
		got, _ := h.repo.GetByID(context.Background(), id)
		if got.State != domain.StateFailed || got.Error != domain.ErrInterrupted.Error() {
			t.Errorf("expected %s interrupted, got %s %q", id, got.State, got.Error)
		}
	}
	if h.locks.Held() != 0 {
		t.Error("expected stale lock released")
	}
}

func TestRefreshLocks_RenewsUnfinishedCascadeJobs(t *testing.T) {
	h := newHarness(t)
	first := h.add(t, deletion("s1"), domain.PriorityMedium)
	h.add(t, deletion("s2"), domain.PriorityLow)
	h.add(t, &domain.OrphanCleanupPayload{}, domain.PriorityLow)
	active := h.next(t)
	if active.ID != first.ID {
		t.Fatalf("expected %s dequeued first, got %s", first.ID, active.ID)
	}

	if n := h.sched.RefreshLocks(context.Background()); n != 2 {
		t.Errorf("expected 2 locks renewed, got %d", n)
	}

	// A lock taken over by someone else is reported, not renewed.
	h.locks.Steal(repository.DeletionLockKey("s2"), "other")
	if n := h.sched.RefreshLocks(context.Background()); n != 1 {
		t.Errorf("expected only the owned lock renewed, got %d", n)
	}

	h.sched.Run(context.Background(), active)
	h.sched.Run(context.Background(), h.next(t))
	if n := h.sched.RefreshLocks(context.Background()); n != 0 {
		t.Errorf("finished jobs must not renew locks, got %d", n)
	}
}

func TestKeepLocks_StopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sched.KeepLocks(ctx, time.Millisecond)
		close(done)
	}()
	h.add(t, deletion("s1"), domain.PriorityMedium)
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("KeepLocks did not return after cancel")
	}
	if h.locks.Held() != 1 {
		t.Errorf("expected lock still held, got %d", h.locks.Held())
	}
}

func TestNext_UnblocksOnShutdown(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := h.sched.Next(ctx)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after cancel")
	}
}
