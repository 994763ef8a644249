package graphwriter

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/config"
	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
)

// fakeStore is a minimal graphstore.Store used to exercise the writer's
// retry and canonicalization behavior without a real graph backend.
type fakeStore struct {
	mu             sync.Mutex
	entityAttempts map[string]int
	failNFirst     int // fail this many attempts per distinct (label,name) before succeeding
	upsertedNames  []string
}

func newFakeStore(failNFirst int) *fakeStore {
	return &fakeStore{entityAttempts: make(map[string]int), failNFirst: failNFirst}
}

func (f *fakeStore) UpsertBaseProvenance(ctx context.Context, movieID, reviewerID, chunkID, chunkText string) error {
	return nil
}

func (f *fakeStore) UpsertEntityWithAccumulatedDescription(ctx context.Context, label, name string, newDescriptions []string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := label + "|" + name
	f.entityAttempts[key]++
	if f.entityAttempts[key] <= f.failNFirst {
		return "", false, apperr.Conflict("simulated concurrent modification", nil)
	}
	f.upsertedNames = append(f.upsertedNames, name)
	return "canon-" + name, false, nil
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
func (f *fakeStore) ListChunks(ctx context.Context) ([]graphstore.ChunkRow, error) { return nil, nil }
func (f *fakeStore) ListSummarizedEntities(ctx context.Context) ([]graphstore.EntityRow, error) {
	return nil, nil
}
func (f *fakeStore) ClearAll(ctx context.Context) error                    { return nil }
func (f *fakeStore) Stats(ctx context.Context) (graphstore.Stats, error) { return graphstore.Stats{}, nil }

func testConfig() config.GraphWriterConfig {
	return config.GraphWriterConfig{
		Phase1Workers: 4, Phase2Workers: 1, MaxAttempts: 3, BackoffUnit: 0.001, MaxDrainRounds: 2,
	}
}

func TestWriteNodesCanonicalizesSurfaceNames(t *testing.T) {
	store := newFakeStore(0)
	w := New(store, testConfig(), zap.NewNop())

	c := &artifact.Chunk{
		ChunkID: "c1", MovieID: "m1", Reviewer: "r1",
		Entities: []artifact.ExtractedEntity{{Name: "Leo", Type: "ACTOR", Description: "starred"}},
		EntityResolution: domain.ResolutionMap{
			"Leo": {SurfaceName: "Leo", CanonicalName: "Leo", Matched: false, MatchType: domain.MatchNone},
		},
	}

	result := w.Run(context.Background(), []*artifact.Chunk{c})
	if len(result.Phase1Failures) != 0 {
		t.Fatalf("expected no phase1 failures, got %d", len(result.Phase1Failures))
	}
	if len(store.upsertedNames) != 1 || store.upsertedNames[0] != "Leo" {
		t.Fatalf("got %v", store.upsertedNames)
	}
}

func TestRetrySucceedsAfterConflicts(t *testing.T) {
	store := newFakeStore(2) // fails twice, succeeds on 3rd attempt
	w := New(store, testConfig(), zap.NewNop())

	c := &artifact.Chunk{
		ChunkID: "c1", MovieID: "m1", Reviewer: "r1",
		Entities: []artifact.ExtractedEntity{{Name: "Inception", Type: "MOVIE"}},
	}
	result := w.Run(context.Background(), []*artifact.Chunk{c})
	if len(result.Phase1Failures) != 0 {
		t.Fatalf("expected success within MaxAttempts, got failures: %v", result.Phase1Failures)
	}
}

func TestExhaustedRetriesPushToFailureQueue(t *testing.T) {
	store := newFakeStore(100) // never succeeds
	cfg := testConfig()
	w := New(store, cfg, zap.NewNop())

	c := &artifact.Chunk{
		ChunkID: "c1", MovieID: "m1", Reviewer: "r1",
		Entities: []artifact.ExtractedEntity{{Name: "Inception", Type: "MOVIE"}},
	}
	result := w.Run(context.Background(), []*artifact.Chunk{c})
	if len(result.Phase1Failures) != 1 {
		t.Fatalf("expected the chunk to exhaust all drain rounds and fail, got %d failures", len(result.Phase1Failures))
	}
}

func TestCoerceStrengthHandlesAllExtractedTypes(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
	}{
		{8, 8},
		{8.0, 8},
		{"8", 8},
		{"8.5", 8},
		{"not-a-number", 1},
	}
	for _, c := range cases {
		if got := coerceStrength(c.in); got != c.want {
			t.Errorf("coerceStrength(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestShuffledCopyPreservesElementsAndLength(t *testing.T) {
	chunks := make([]*artifact.Chunk, 10)
	for i := range chunks {
		chunks[i] = &artifact.Chunk{ChunkID: string(rune('a' + i))}
	}
	out := shuffledCopy(chunks)
	if len(out) != len(chunks) {
		t.Fatalf("got %d, want %d", len(out), len(chunks))
	}
}
