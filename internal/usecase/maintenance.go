package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// MaintenanceRequest is the body of the orphan cleanup and validation endpoints.
type MaintenanceRequest struct {
	Priority string `json:"priority"`
	DryRun   bool   `json:"dryRun"`
}

// MaintenanceUsecase queues orphan cleanup and integrity validation jobs.
type MaintenanceUsecase struct {
	scheduler JobScheduler
	logger    *zap.Logger
}

// NewMaintenanceUsecase creates a new MaintenanceUsecase.
func NewMaintenanceUsecase(sched JobScheduler, logger *zap.Logger) *MaintenanceUsecase {
	return &MaintenanceUsecase{scheduler: sched, logger: logger}
}

// Execute queues a maintenance job of type t. Only admins may do this.
func (uc *MaintenanceUsecase) Execute(ctx context.Context, t domain.JobType, req *MaintenanceRequest, actor domain.Actor) (*domain.Job, error) {
	var payload domain.Payload
	switch t {
	case domain.JobOrphanedReferenceCleanup:
		payload = &domain.OrphanCleanupPayload{DryRun: req.DryRun}
	case domain.JobIntegrityValidation:
		payload = &domain.IntegrityValidationPayload{}
	default:
		return nil, domain.ErrInvalidJobType
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	job, err := uc.scheduler.AddJob(ctx, scheduler.JobRequest{
		Payload:  payload,
		Priority: priority,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("Maintenance job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(t)),
		zap.String("by", actor.ID),
	)
	return job, nil
}
