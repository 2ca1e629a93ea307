package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// DeletionRequest is the body of a single deletion request.
type DeletionRequest struct {
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// DeletionResponse is returned when a deletion job is accepted.
type DeletionResponse struct {
	JobID                   uuid.UUID              `json:"jobId"`
	ImpactAnalysis          *domain.ImpactAnalysis `json:"impactAnalysis"`
	EstimatedProcessingTime string                 `json:"estimatedProcessingTime"`
}

// QueueDeletionUsecase analyses and enqueues the cascade deletion of one student.
type QueueDeletionUsecase struct {
	scheduler JobScheduler
	analyzer  ImpactAnalyzer
	students  repository.StudentRepository
	publisher notify.Publisher
	logger    *zap.Logger
}

// NewQueueDeletionUsecase creates a new QueueDeletionUsecase.
func NewQueueDeletionUsecase(
	sched JobScheduler,
	analyzer ImpactAnalyzer,
	students repository.StudentRepository,
	publisher notify.Publisher,
	logger *zap.Logger,
) *QueueDeletionUsecase {
	return &QueueDeletionUsecase{
		scheduler: sched,
		analyzer:  analyzer,
		students:  students,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute checks the student exists, computes the impact and queues the job.
func (uc *QueueDeletionUsecase) Execute(ctx context.Context, entityID string, req *DeletionRequest, actor domain.Actor) (*DeletionResponse, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, domain.ErrEmptyEntityID
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	st, err := uc.students.GetStudent(ctx, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}
	if !st.IsActive {
		return nil, domain.ErrEntityNotFound
	}

	impact := uc.analyzer.AnalyzeSafe(ctx, entityID)

	job, err := uc.scheduler.AddJob(ctx, scheduler.JobRequest{
		Payload:  &domain.CascadeDeletionPayload{EntityID: entityID, Reason: req.Reason},
		Priority: priority,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}

	uc.publisher.Publish(domain.EventDeletionWarning, domain.DeletionWarning{
		EntityID:            entityID,
		Impact:              impact.TotalDocuments,
		AffectedCollections: impact.AffectedCollections,
		Recommendation:      impact.Recommendation,
		Severity:            impact.Severity,
	})

	uc.logger.Info("Cascade deletion queued",
		zap.String("job_id", job.ID.String()),
		zap.String("entity_id", entityID),
		zap.String("severity", string(impact.Severity)),
	)

	return &DeletionResponse{
		JobID:                   job.ID,
		ImpactAnalysis:          impact,
		EstimatedProcessingTime: domain.EstimateProcessingTime(impact.TotalDocuments).String(),
	}, nil
}
