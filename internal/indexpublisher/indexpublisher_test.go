package indexpublisher

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

type fakeStore struct {
	entities []graphstore.EntityRow
	chunks   []graphstore.ChunkRow
}

func (f *fakeStore) UpsertBaseProvenance(ctx context.Context, movieID, reviewerID, chunkID, chunkText string) error {
	return nil
}
func (f *fakeStore) UpsertEntityWithAccumulatedDescription(ctx context.Context, label, name string, newDescriptions []string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeStore) UpsertMentionsEdge(ctx context.Context, chunkID, entityName, entityLabel string) error {
	return nil
}
func (f *fakeStore) UpsertRelationshipSingle(ctx context.Context, nameA, labelA, nameB, labelB string, newDescriptions []string, strength int) (bool, error) {
	return false, nil
}
func (f *fakeStore) ReadSummarizationCandidates(ctx context.Context) ([]graphstore.SummarizationCandidate, error) {
	return nil, nil
}
func (f *fakeStore) WriteSummary(ctx context.Context, c graphstore.SummarizationCandidate, summary string) error {
	return nil
}
func (f *fakeStore) AssignCanonicalID(ctx context.Context, c graphstore.SummarizationCandidate, canonicalID string) error {
	return nil
}
func (f *fakeStore) ListChunks(ctx context.Context) ([]graphstore.ChunkRow, error) {
	return f.chunks, nil
}
func (f *fakeStore) ListSummarizedEntities(ctx context.Context) ([]graphstore.EntityRow, error) {
	return f.entities, nil
}
func (f *fakeStore) ClearAll(ctx context.Context) error { return nil }
func (f *fakeStore) Stats(ctx context.Context) (graphstore.Stats, error) {
	return graphstore.Stats{}, nil
}

type stubRegistry struct {
	mu             sync.Mutex
	synonymRecords []domain.SynonymRecord
	chunkRecords   []domain.ChunkRecord
	refreshed      bool
}

func (r *stubRegistry) Resolve(ctx context.Context, surfaceName, entityType string) registry.Lookup {
	return registry.Lookup{CanonicalName: surfaceName, Matched: false, MatchType: domain.MatchNone}
}

func (r *stubRegistry) Merge(ctx context.Context, canonicalID, canonicalName, entityType string, newSynonyms []string) error {
	return nil
}

func (r *stubRegistry) EnsureIndices(ctx context.Context) error { return nil }

func (r *stubRegistry) UpsertSynonymRecord(ctx context.Context, rec domain.SynonymRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synonymRecords = append(r.synonymRecords, rec)
	return nil
}

func (r *stubRegistry) UpsertChunkRecord(ctx context.Context, rec domain.ChunkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkRecords = append(r.chunkRecords, rec)
	return nil
}

func (r *stubRegistry) RefreshChunks(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = true
	return nil
}

func TestPublishEntitiesSkipsWithoutCanonicalID(t *testing.T) {
	store := &fakeStore{entities: []graphstore.EntityRow{
		{Name: "Tom Hardy", Label: "ACTOR", Summary: "an actor", CanonicalID: ""},
		{Name: "Inception", Label: "MOVIE", Summary: "a film", CanonicalID: "canon-1"},
	}}
	reg := &stubRegistry{}
	p := &Publisher{Store: store, Registry: reg, Embedder: fakeEmbedder{dim: 4}, Logger: zap.NewNop(), Workers: 2}

	published, failed, err := p.PublishEntities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if published != 1 || failed != 0 {
		t.Fatalf("got published=%d failed=%d", published, failed)
	}
	if len(reg.synonymRecords) != 1 || reg.synonymRecords[0].CanonicalID != "canon-1" {
		t.Fatalf("got %+v", reg.synonymRecords)
	}
}

func TestPublishChunksEmbedsAndRefreshes(t *testing.T) {
	store := &fakeStore{chunks: []graphstore.ChunkRow{
		{ID: "c1", Text: "a review", CanonicalID: ""},
		{ID: "c2", Text: "", CanonicalID: ""},
	}}
	reg := &stubRegistry{}
	p := &Publisher{Store: store, Registry: reg, Embedder: fakeEmbedder{dim: 4}, Logger: zap.NewNop(), Workers: 2}

	published, failed, err := p.PublishChunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if published != 1 || failed != 0 {
		t.Fatalf("got published=%d failed=%d (empty-text chunk should be skipped, not failed)", published, failed)
	}
	if !reg.refreshed {
		t.Fatal("expected RefreshChunks to be called")
	}
}
