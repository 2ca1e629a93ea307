package cascade

import (
	"context"
	"fmt"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// DeletionHandler runs cascadeDeletion jobs. The scheduler already holds
// the entity lock for the lifetime of the job.
func DeletionHandler(e *Engine) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
		p, ok := job.Payload.(*domain.CascadeDeletionPayload)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected payload %T", domain.ErrInvalidJobType, job.Payload)
		}
		res, err := e.Delete(ctx, p.EntityID, DeleteOptions{
			JobID:       job.ID,
			Reason:      p.Reason,
			PerformedBy: job.RequestedBy,
			Type:        domain.DeletionCascade,
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// BatchDeletionHandler runs batchCascadeDeletion jobs and honours
// administrative stop requests between entities.
func BatchDeletionHandler(e *Engine) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
		p, ok := job.Payload.(*domain.BatchCascadeDeletionPayload)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected payload %T", domain.ErrInvalidJobType, job.Payload)
		}
		res, err := e.DeleteBatch(ctx, p.EntityIDs, DeleteOptions{
			JobID:       job.ID,
			Reason:      p.Reason,
			PerformedBy: job.RequestedBy,
			Stop:        func() bool { return scheduler.StopRequested(ctx) },
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}
