package query

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

type stubRegistry struct{}

func (r *stubRegistry) Resolve(ctx context.Context, surfaceName, entityType string) registry.Lookup {
	return registry.Lookup{CanonicalName: surfaceName, Matched: true, MatchType: domain.MatchNameExact}
}
func (r *stubRegistry) Merge(ctx context.Context, canonicalID, canonicalName, entityType string, newSynonyms []string) error {
	return nil
}
func (r *stubRegistry) EnsureIndices(ctx context.Context) error { return nil }
func (r *stubRegistry) UpsertSynonymRecord(ctx context.Context, rec domain.SynonymRecord) error {
	return nil
}
func (r *stubRegistry) UpsertChunkRecord(ctx context.Context, rec domain.ChunkRecord) error {
	return nil
}
func (r *stubRegistry) RefreshChunks(ctx context.Context) error { return nil }

type fakeGraph struct {
	neighbors []graphstore.NeighborEntity
	prompt    string
}

func (g *fakeGraph) Neighborhood(ctx context.Context, chunkIDs []string, maxHops int) ([]graphstore.NeighborEntity, error) {
	return g.neighbors, nil
}
func (g *fakeGraph) EntityPrompt(ctx context.Context, name, label string) (string, bool, error) {
	return g.prompt, g.prompt != "", nil
}
func (g *fakeGraph) RunCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func TestMergeEntitiesDedupsByName(t *testing.T) {
	a := []graphstore.NeighborEntity{{Name: "Tom Hardy"}, {Name: "Inception"}}
	b := []graphstore.NeighborEntity{{Name: "Tom Hardy"}, {Name: "Leonardo DiCaprio"}}
	merged := mergeEntities(a, b)
	if len(merged) != 3 {
		t.Fatalf("got %d entities, want 3 after dedup", len(merged))
	}
}

func TestFuseIncludesAllSections(t *testing.T) {
	out := fuse(
		"Who played Eames?",
		[]domain.ChunkRecord{{Context: "Tom Hardy played Eames."}},
		[]graphstore.NeighborEntity{{Name: "Tom Hardy", Label: "ACTOR", Summary: "an actor"}},
		[]map[string]any{{"n": "Inception"}},
		map[string]string{"Tom Hardy": "recent news about Tom Hardy"},
	)
	for _, want := range []string{"Who played Eames?", "Tom Hardy played Eames.", "an actor", "Inception", "recent news about Tom Hardy"} {
		if !strings.Contains(out, want) {
			t.Fatalf("fused context missing %q:\n%s", want, out)
		}
	}
}

func TestResolveAllSkipsEmptyNames(t *testing.T) {
	e := &Engine{Registry: &stubRegistry{}, Logger: zap.NewNop()}
	resolved := e.resolveAll(context.Background(), []string{"Tom Hardy", "", "Inception"})
	if len(resolved) != 2 {
		t.Fatalf("got %d resolved entries, want 2", len(resolved))
	}
}

func TestRunAgentsSkipsEntitiesWithoutPrompt(t *testing.T) {
	e := &Engine{Graph: &fakeGraph{prompt: ""}, Logger: zap.NewNop()}
	out := e.runAgents(context.Background(), []graphstore.NeighborEntity{{Name: "Tom Hardy"}})
	if len(out) != 0 {
		t.Fatalf("got %d agentic outputs, want 0 when no prompt is set", len(out))
	}
}
