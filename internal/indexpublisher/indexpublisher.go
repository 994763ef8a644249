// Package indexpublisher implements the Index Publisher (C8): pushing
// summarized graph entities and chunk text into the search index's
// vector-bearing documents.
package indexpublisher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

// DefaultChunkPublishWorkers matches the reference embed+index worker
// pool size, bounded by the embedding backend's own throttling.
const DefaultChunkPublishWorkers = 10

// Embedder produces a fixed-dimension vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Publisher drives C8 against a graphstore.Store and a registry.Registry.
type Publisher struct {
	Store    graphstore.Store
	Registry registry.Registry
	Embedder Embedder
	Logger   *zap.Logger
	Workers  int
}

// New returns a Publisher with the reference chunk-publish concurrency.
func New(store graphstore.Store, reg registry.Registry, embedder Embedder, logger *zap.Logger) *Publisher {
	return &Publisher{Store: store, Registry: reg, Embedder: embedder, Logger: logger, Workers: DefaultChunkPublishWorkers}
}

// PublishEntities ensures every summarized, canonical-id-bearing node has
// a current synonym record in the search index, embedding its summary
// once per call.
func (p *Publisher) PublishEntities(ctx context.Context) (published int, failed int, err error) {
	entities, err := p.Store.ListSummarizedEntities(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("indexpublisher: list summarized entities: %w", err)
	}
	for _, e := range entities {
		if e.CanonicalID == "" {
			continue
		}
		vec, embedErr := p.Embedder.Embed(ctx, e.Summary)
		if embedErr != nil {
			failed++
			p.Logger.Warn("indexpublisher: embed entity summary failed", zap.String("name", e.Name), zap.Error(embedErr))
			continue
		}
		rec := domain.SynonymRecord{
			Name: e.Name, EntityType: e.Label, Summary: e.Summary,
			SummaryVec: vec, CanonicalID: e.CanonicalID,
		}
		if err := p.Registry.UpsertSynonymRecord(ctx, rec); err != nil {
			failed++
			p.Logger.Warn("indexpublisher: upsert synonym record failed", zap.String("name", e.Name), zap.Error(err))
			continue
		}
		published++
	}
	return published, failed, nil
}

// PublishChunks embeds and indexes every graph chunk, bounded by Workers
// concurrent embed+write calls, then issues a single index refresh so
// immediately-subsequent queries observe the freshly published chunks.
func (p *Publisher) PublishChunks(ctx context.Context) (published int, failed int, err error) {
	chunks, err := p.Store.ListChunks(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("indexpublisher: list chunks: %w", err)
	}

	queue := make(chan graphstore.ChunkRow, len(chunks))
	for _, c := range chunks {
		queue <- c
	}
	close(queue)

	var mu sync.Mutex
	var wg sync.WaitGroup
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultChunkPublishWorkers
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range queue {
				if c.Text == "" {
					continue
				}
				vec, embedErr := p.Embedder.Embed(ctx, c.Text)
				if embedErr != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					p.Logger.Warn("indexpublisher: embed chunk failed", zap.String("chunk_id", c.ID), zap.Error(embedErr))
					continue
				}
				rec := domain.ChunkRecord{Context: c.Text, ContextVec: vec, CanonicalID: c.ID}
				if err := p.Registry.UpsertChunkRecord(ctx, rec); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					p.Logger.Warn("indexpublisher: upsert chunk record failed", zap.String("chunk_id", c.ID), zap.Error(err))
					continue
				}
				mu.Lock()
				published++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := p.Registry.RefreshChunks(ctx); err != nil {
		p.Logger.Warn("indexpublisher: refresh chunks index failed", zap.Error(err))
	}
	return published, failed, nil
}
