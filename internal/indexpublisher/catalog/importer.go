package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/domain"
)

// Embedder produces a fixed-dimension vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Registry is the subset of registry.Registry the one-shot import flow
// depends on.
type Registry interface {
	UpsertSynonymRecord(ctx context.Context, rec domain.SynonymRecord) error
}

// Import runs the one-shot synonym import flow: load the catalog,
// synthesize a seed entity per movie/director/cast member, embed its
// synthesized summary once, and write the initial synonym record keyed
// by a freshly minted canonical id. Subsequent runs that extract
// synonyms from review text go through the registry's Merge path
// instead, never through Import again.
func Import(ctx context.Context, loader Loader, embedder Embedder, reg Registry, logger *zap.Logger) (imported int, failed int, err error) {
	entries, err := loader.Load()
	if err != nil {
		return 0, 0, fmt.Errorf("catalog: load: %w", err)
	}

	for _, seed := range Synthesize(entries) {
		vec, embedErr := embedder.Embed(ctx, seed.Summary)
		if embedErr != nil {
			failed++
			logger.Warn("catalog: embed seed failed", zap.String("name", seed.Name), zap.Error(embedErr))
			continue
		}
		rec := domain.SynonymRecord{
			Name:        seed.Name,
			EntityType:  seed.EntityType,
			Summary:     seed.Summary,
			SummaryVec:  vec,
			CanonicalID: domain.NewCanonicalID(seed.EntityType, seed.Name),
		}
		if err := reg.UpsertSynonymRecord(ctx, rec); err != nil {
			failed++
			logger.Warn("catalog: upsert seed record failed", zap.String("name", seed.Name), zap.Error(err))
			continue
		}
		imported++
	}
	return imported, failed, nil
}
