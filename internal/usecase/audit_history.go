package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

const (
	defaultAuditPageSize = 20
	maxAuditPageSize     = 100
)

// AuditPage is one page of an entity's deletion history.
type AuditPage struct {
	EntityID string                `json:"entityId"`
	Items    []domain.AuditSummary `json:"items"`
	Total    int                   `json:"total"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

// AuditHistoryUsecase lists audit records without their full snapshots.
type AuditHistoryUsecase struct {
	audits repository.AuditRepository
}

// NewAuditHistoryUsecase creates a new AuditHistoryUsecase.
func NewAuditHistoryUsecase(audits repository.AuditRepository) *AuditHistoryUsecase {
	return &AuditHistoryUsecase{audits: audits}
}

// Execute returns records newest first. A zero limit selects the default page size.
func (uc *AuditHistoryUsecase) Execute(ctx context.Context, entityID string, limit, offset int) (*AuditPage, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, domain.ErrEmptyEntityID
	}
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrValidation)
	}
	if limit == 0 {
		limit = defaultAuditPageSize
	}
	limit = min(limit, maxAuditPageSize)

	recs, total, err := uc.audits.ListByEntity(ctx, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	page := &AuditPage{
		EntityID: entityID,
		Items:    make([]domain.AuditSummary, 0, len(recs)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, rec := range recs {
		page.Items = append(page.Items, rec.Summary())
	}
	return page, nil
}
