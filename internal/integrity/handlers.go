package integrity

import (
	"context"
	"fmt"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
)

// CleanupHandler runs orphanedReferenceCleanup jobs.
func CleanupHandler(a *Auditor) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
		p, ok := job.Payload.(*domain.OrphanCleanupPayload)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected payload %T", domain.ErrInvalidJobType, job.Payload)
		}
		res, err := a.CleanupOrphans(ctx, p.DryRun)
		if res == nil {
			return nil, err
		}
		// A failed sweep still reports what it cleaned before the error.
		return res, err
	})
}

// ValidationHandler runs integrityValidation jobs.
func ValidationHandler(a *Auditor) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, _ *domain.Job) (domain.JobResult, error) {
		res, err := a.Validate(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}
