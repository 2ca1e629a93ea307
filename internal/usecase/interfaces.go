package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// JobScheduler is the part of the scheduler the management API drives.
type JobScheduler interface {
	AddJob(ctx context.Context, req scheduler.JobRequest) (*domain.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Position(id uuid.UUID) (int, bool)
	Cancel(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error)
	QueueStatus() scheduler.QueueStatus
	BatchLimit() int
}

// ImpactAnalyzer computes deletion warnings.
type ImpactAnalyzer interface {
	AnalyzeSafe(ctx context.Context, entityID string) *domain.ImpactAnalysis
	AnalyzeBatchSafe(ctx context.Context, entityIDs []string) *domain.ImpactAnalysis
}

// Restorer rebuilds deleted students from audit snapshots.
type Restorer interface {
	Restore(ctx context.Context, entityID string, auditID uuid.UUID, actor domain.Actor, reason string) (*domain.RestoreResult, error)
}

var _ JobScheduler = (*scheduler.Scheduler)(nil)
