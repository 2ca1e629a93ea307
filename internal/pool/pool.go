package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
)

// errorBackoff is how long a worker waits after Next fails for a reason
// other than shutdown.
const errorBackoff = 100 * time.Millisecond

// Source hands jobs to workers and executes them.
type Source interface {
	// Next blocks until a job is available or ctx is cancelled.
	Next(ctx context.Context) (*domain.Job, error)
	// Run executes a job returned by Next to completion.
	Run(ctx context.Context, job *domain.Job)
}

// WorkerPool manages a fixed-size pool of goroutines that pull jobs.
type WorkerPool struct {
	size    int
	source  Source
	metrics *metrics.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, source Source, m *metrics.Metrics, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		source:  source,
		metrics: m,
		logger:  logger,
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Start launches all worker goroutines. Cancel ctx and call Stop to shut down.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		job, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
				return
			}
			p.logger.Error("Failed to dequeue job", zap.Int("worker_id", id), zap.Error(err))
			time.Sleep(errorBackoff)
			continue
		}

		p.logger.Info("Worker processing job",
			zap.Int("worker_id", id),
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
		)
		p.run(ctx, id, job)
	}
}

// run executes one job; a panic is logged and the worker keeps going.
func (p *WorkerPool) run(ctx context.Context, id int, job *domain.Job) {
	p.metrics.WorkersActive.Inc()
	defer p.metrics.WorkersActive.Dec()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	p.source.Run(ctx, job)
}
