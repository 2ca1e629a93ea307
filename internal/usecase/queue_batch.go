package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// BatchDeletionRequest is the body of a batch deletion request.
type BatchDeletionRequest struct {
	IDs      []string `json:"ids"`
	Reason   string   `json:"reason"`
	Priority string   `json:"priority"`
}

// BatchDeletionResponse is returned when a batch job is accepted.
type BatchDeletionResponse struct {
	JobID                   uuid.UUID              `json:"jobId"`
	BatchImpact             *domain.ImpactAnalysis `json:"batchImpact"`
	EstimatedProcessingTime string                 `json:"estimatedProcessingTime"`
}

// QueueBatchUsecase validates and enqueues a batch cascade deletion.
type QueueBatchUsecase struct {
	scheduler JobScheduler
	analyzer  ImpactAnalyzer
	publisher notify.Publisher
	logger    *zap.Logger
}

// NewQueueBatchUsecase creates a new QueueBatchUsecase.
func NewQueueBatchUsecase(sched JobScheduler, analyzer ImpactAnalyzer, publisher notify.Publisher, logger *zap.Logger) *QueueBatchUsecase {
	return &QueueBatchUsecase{
		scheduler: sched,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute rejects malformed or oversized batches before anything is queued.
func (uc *QueueBatchUsecase) Execute(ctx context.Context, req *BatchDeletionRequest, actor domain.Actor) (*BatchDeletionResponse, error) {
	payload := &domain.BatchCascadeDeletionPayload{EntityIDs: req.IDs, Reason: req.Reason}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if limit := uc.scheduler.BatchLimit(); len(req.IDs) > limit {
		return nil, fmt.Errorf("%w: %d ids, limit %d", domain.ErrBatchTooLarge, len(req.IDs), limit)
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	impact := uc.analyzer.AnalyzeBatchSafe(ctx, req.IDs)

	job, err := uc.scheduler.AddJob(ctx, scheduler.JobRequest{
		Payload:  payload,
		Priority: priority,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(domain.EventDeletionWarning, domain.DeletionWarning{
		EntityIDs:           req.IDs,
		Impact:              impact.TotalDocuments,
		AffectedCollections: impact.AffectedCollections,
		Recommendation:      impact.Recommendation,
		Severity:            impact.Severity,
	})

	uc.logger.Info("Batch cascade deletion queued",
		zap.String("job_id", job.ID.String()),
		zap.Int("entities", len(req.IDs)),
	)

	return &BatchDeletionResponse{
		JobID:                   job.ID,
		BatchImpact:             impact,
		EstimatedProcessingTime: domain.EstimateProcessingTime(impact.TotalDocuments + len(req.IDs)).String(),
	}, nil
}
