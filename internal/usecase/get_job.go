package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// JobStatusResponse is the polled view of a job.
type JobStatusResponse struct {
	Job      *domain.Job      `json:"job"`
	Status   domain.JobState  `json:"status"`
	Position *int             `json:"position,omitempty"`
	Result   domain.JobResult `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// GetJobUsecase handles fetching job status and results.
type GetJobUsecase struct {
	scheduler JobScheduler
	logger    *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(sched JobScheduler, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		scheduler: sched,
		logger:    logger,
	}
}

// Execute retrieves a job by its ID.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*JobStatusResponse, error) {
	job, err := uc.scheduler.Get(ctx, id)
	if err != nil {
		uc.logger.Debug("Job lookup failed", zap.String("job_id", id.String()), zap.Error(err))
		return nil, err
	}

	resp := &JobStatusResponse{
		Job:    job,
		Status: job.State,
		Result: job.Result,
		Error:  job.Error,
	}
	if job.State == domain.StateQueued {
		if pos, ok := uc.scheduler.Position(id); ok {
			resp.Position = &pos
		}
	}
	return resp, nil
}
