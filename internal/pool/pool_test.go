package pool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/pool"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/memory"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/mock"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// chanSource feeds jobs from a channel and counts runs.
type chanSource struct {
	jobs  chan *domain.Job
	ran   atomic.Int32
	runFn func(job *domain.Job)
}

func (s *chanSource) Next(ctx context.Context) (*domain.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-s.jobs:
		return job, nil
	}
}

func (s *chanSource) Run(_ context.Context, job *domain.Job) {
	if s.runFn != nil {
		s.runFn(job)
	}
	s.ran.Add(1)
}

func newJob() *domain.Job {
	return &domain.Job{ID: uuid.New(), Type: domain.JobIntegrityValidation, State: domain.StateActive}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Test: pool runs every job handed to it.
func TestPool_RunsJobs(t *testing.T) {
	src := &chanSource{jobs: make(chan *domain.Job, 16)}
	wp := pool.NewWorkerPool(3, src, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	for i := 0; i < 10; i++ {
		src.jobs <- newJob()
	}
	waitFor(t, func() bool { return src.ran.Load() == 10 })

	cancel()
	wp.Stop()
}

// Test: a panicking job does not kill its worker.
func TestPool_SurvivesPanic(t *testing.T) {
	var panicked atomic.Bool
	src := &chanSource{jobs: make(chan *domain.Job, 4)}
	src.runFn = func(*domain.Job) {
		if panicked.CompareAndSwap(false, true) {
			panic("handler exploded")
		}
	}
	wp := pool.NewWorkerPool(1, src, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	src.jobs <- newJob()
	src.jobs <- newJob()
	waitFor(t, func() bool { return src.ran.Load() == 1 })

	cancel()
	wp.Stop()
}

// Test: Stop waits for the in-flight job to finish.
func TestPool_StopWaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	src := &chanSource{jobs: make(chan *domain.Job, 1)}
	src.runFn = func(*domain.Job) {
		<-release
		finished.Store(true)
	}
	wp := pool.NewWorkerPool(1, src, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	src.jobs <- newJob()
	time.Sleep(20 * time.Millisecond)
	cancel()

	stopped := make(chan struct{})
	go func() {
		wp.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-stopped
	if !finished.Load() {
		t.Error("expected in-flight job to finish")
	}
}

// Test: workers drain a real scheduler in priority order.
func TestPool_WithScheduler(t *testing.T) {
	repo := mock.NewMockJobRepository()
	m := metrics.New(prometheus.NewRegistry())
	sched := scheduler.New(scheduler.Config{Workers: 2}, repo, memory.NewLockStore(), mock.NewMockPublisher(), m, zap.NewNop())

	var done atomic.Int32
	sched.Register(domain.JobCascadeDeletion, scheduler.HandlerFunc(func(context.Context, *domain.Job) (domain.JobResult, error) {
		done.Add(1)
		return nil, nil
	}))

	admin := domain.Actor{ID: "admin", Role: domain.RoleAdmin}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if _, err := sched.AddJob(context.Background(), scheduler.JobRequest{
			Payload: &domain.CascadeDeletionPayload{EntityID: id},
			Actor:   admin,
		}); err != nil {
			t.Fatal(err)
		}
	}

	wp := pool.NewWorkerPool(2, sched, m, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	waitFor(t, func() bool { return done.Load() == 5 })
	waitFor(t, func() bool { return sched.Stats().JobsProcessed == 5 })

	cancel()
	wp.Stop()

	if st := sched.QueueStatus(); st.TotalQueued != 0 || st.Active != 0 {
		t.Errorf("expected idle scheduler, got %+v", st)
	}
}
