package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

// RestoreRequest is the body of a restore request.
type RestoreRequest struct {
	AuditID string `json:"auditId"`
	Reason  string `json:"reason"`
}

// RestoreUsecase restores a deleted student from one of its audit records.
type RestoreUsecase struct {
	restorer Restorer
	logger   *zap.Logger
}

// NewRestoreUsecase creates a new RestoreUsecase.
func NewRestoreUsecase(restorer Restorer, logger *zap.Logger) *RestoreUsecase {
	return &RestoreUsecase{restorer: restorer, logger: logger}
}

func (uc *RestoreUsecase) Execute(ctx context.Context, entityID string, req *RestoreRequest, actor domain.Actor) (*domain.RestoreResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, domain.ErrEmptyEntityID
	}
	auditID, err := uuid.Parse(strings.TrimSpace(req.AuditID))
	if err != nil {
		return nil, domain.ErrInvalidAuditID
	}

	res, err := uc.restorer.Restore(ctx, entityID, auditID, actor, req.Reason)
	if err != nil {
		uc.logger.Warn("Restore rejected",
			zap.String("entity_id", entityID),
			zap.String("audit_id", auditID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return res, nil
}
