package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// CancelJobUsecase cancels queued jobs and stops active batches.
type CancelJobUsecase struct {
	scheduler JobScheduler
}

// NewCancelJobUsecase creates a new CancelJobUsecase.
func NewCancelJobUsecase(sched JobScheduler) *CancelJobUsecase {
	return &CancelJobUsecase{scheduler: sched}
}

func (uc *CancelJobUsecase) Execute(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error) {
	return uc.scheduler.Cancel(ctx, id, actor)
}
