package impact

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// maxConcurrentCounts bounds parallel count queries per analysis.
const maxConcurrentCounts = 4

// Analyzer computes the blast radius of deleting students. It only reads.
type Analyzer struct {
	relations  repository.RelationRepository
	registry   []domain.Relation
	thresholds domain.Thresholds
	logger     *zap.Logger
}

// NewAnalyzer creates an Analyzer over the student relation registry.
func NewAnalyzer(relations repository.RelationRepository, thresholds domain.Thresholds, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		relations:  relations,
		registry:   domain.StudentRelations,
		thresholds: thresholds,
		logger:     logger,
	}
}

// counts returns live reference counts per registry entry, in registry order.
func (a *Analyzer) counts(ctx context.Context, entityID string) ([]int, error) {
	out := make([]int, len(a.registry))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCounts)
	for i, rel := range a.registry {
		i, rel := i, rel
		g.Go(func() error {
			n, err := a.relations.Count(gctx, rel, entityID)
			if err != nil {
				return fmt.Errorf("count %s: %w", rel.Name, err)
			}
			out[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) build(counts []int) *domain.ImpactAnalysis {
	res := &domain.ImpactAnalysis{AffectedCollections: []domain.AffectedCollection{}}
	for i, rel := range a.registry {
		if counts[i] == 0 {
			continue
		}
		res.AffectedCollections = append(res.AffectedCollections, domain.AffectedCollection{
			Name:  rel.Name,
			Count: counts[i],
			Type:  rel.Kind,
		})
		res.TotalDocuments += counts[i]
	}
	res.Severity = a.thresholds.Classify(res.TotalDocuments)
	res.Recommendation = res.Severity.Recommendation()
	return res
}

// Analyze counts every relation pointing at entityID. Repeated calls with
// no intervening writes return equal values.
func (a *Analyzer) Analyze(ctx context.Context, entityID string) (*domain.ImpactAnalysis, error) {
	counts, err := a.counts(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return a.build(counts), nil
}

// AnalyzeBatch sums counts per relation over all ids and grades the total.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, entityIDs []string) (*domain.ImpactAnalysis, error) {
	sum := make([]int, len(a.registry))
	for _, id := range entityIDs {
		counts, err := a.counts(ctx, id)
		if err != nil {
			return nil, err
		}
		for i, n := range counts {
			sum[i] += n
		}
	}
	return a.build(sum), nil
}

// AnalyzeSafe never fails; errors degrade to an unknown-severity analysis.
func (a *Analyzer) AnalyzeSafe(ctx context.Context, entityID string) *domain.ImpactAnalysis {
	res, err := a.Analyze(ctx, entityID)
	if err != nil {
		a.logger.Warn("Impact analysis failed", zap.String("entity_id", entityID), zap.Error(err))
		return domain.UnknownImpact()
	}
	return res
}

// AnalyzeBatchSafe is the non-failing variant of AnalyzeBatch.
func (a *Analyzer) AnalyzeBatchSafe(ctx context.Context, entityIDs []string) *domain.ImpactAnalysis {
	res, err := a.AnalyzeBatch(ctx, entityIDs)
	if err != nil {
		a.logger.Warn("Batch impact analysis failed", zap.Int("entities", len(entityIDs)), zap.Error(err))
		return domain.UnknownImpact()
	}
	return res
}
