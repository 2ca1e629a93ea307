package amqp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

type mockEnqueuer struct {
	ExecuteFunc func(ctx context.Context, t domain.JobType, req *usecase.MaintenanceRequest, actor domain.Actor) (*domain.Job, error)
}

func (m *mockEnqueuer) Execute(ctx context.Context, t domain.JobType, req *usecase.MaintenanceRequest, actor domain.Actor) (*domain.Job, error) {
	return m.ExecuteFunc(ctx, t, req, actor)
}

func TestHandle_QueuesAsSystem(t *testing.T) {
	var gotType domain.JobType
	var gotReq *usecase.MaintenanceRequest
	var gotActor domain.Actor
	enq := &mockEnqueuer{
		ExecuteFunc: func(_ context.Context, t domain.JobType, req *usecase.MaintenanceRequest, actor domain.Actor) (*domain.Job, error) {
			gotType, gotReq, gotActor = t, req, actor
			return &domain.Job{ID: uuid.New(), Type: t}, nil
		},
	}
	c := &Consumer{enqueuer: enq, logger: zap.NewNop()}

	ok := c.Handle(context.Background(), []byte(`{"type":"orphanedReferenceCleanup","priority":"low","dryRun":true}`))
	if !ok {
		t.Fatal("expected message to be acked")
	}
	if gotType != domain.JobOrphanedReferenceCleanup {
		t.Errorf("unexpected job type %s", gotType)
	}
	if gotReq.Priority != "low" || !gotReq.DryRun {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if !gotActor.IsAdmin() || gotActor.ID != domain.SystemActor.ID {
		t.Errorf("expected system actor, got %+v", gotActor)
	}
}

func TestHandle_Rejects(t *testing.T) {
	enq := &mockEnqueuer{
		ExecuteFunc: func(_ context.Context, t domain.JobType, _ *usecase.MaintenanceRequest, _ domain.Actor) (*domain.Job, error) {
			if !t.AdminOnly() {
				return nil, domain.ErrInvalidJobType
			}
			return &domain.Job{ID: uuid.New(), Type: t}, nil
		},
	}
	c := &Consumer{enqueuer: enq, logger: zap.NewNop()}

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"type":`},
		{"rejected type", `{"type":"cascadeDeletion"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c.Handle(context.Background(), []byte(tt.body)) {
				t.Error("expected message to be dead-lettered")
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	if got := backoff(0); got != baseReconnectDelay {
		t.Errorf("expected first delay %v, got %v", baseReconnectDelay, got)
	}
	if got := backoff(2); got != 4*baseReconnectDelay {
		t.Errorf("expected doubling, got %v", got)
	}
	if got := backoff(20); got != maxReconnectDelay {
		t.Errorf("expected cap %v, got %v", maxReconnectDelay, got)
	}
}
