package resolution

import (
	"context"
	"testing"

	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

type stubResolver struct {
	byName map[string]registry.Lookup
}

func (s stubResolver) Resolve(ctx context.Context, surfaceName, entityType string) registry.Lookup {
	if l, ok := s.byName[surfaceName]; ok {
		return l
	}
	return registry.Lookup{CanonicalName: surfaceName, Matched: false, MatchType: domain.MatchNone}
}

func TestRunResolvesEntitiesAndRelationshipEndpoints(t *testing.T) {
	r := stubResolver{byName: map[string]registry.Lookup{
		"Leo": {CanonicalName: "Leonardo DiCaprio", Matched: true, MatchType: domain.MatchSynonymExact},
	}}
	c := &artifact.Chunk{
		Entities: []artifact.ExtractedEntity{{Name: "Leo", Type: "ACTOR"}},
		Relationships: []artifact.ExtractedRelationship{
			{SourceName: "Leo", TargetName: "Inception"},
		},
	}
	Run(context.Background(), r, c)

	entry, ok := c.EntityResolution["Leo"]
	if !ok || entry.CanonicalName != "Leonardo DiCaprio" || !entry.Matched {
		t.Fatalf("got %+v", entry)
	}
	unresolved, ok := c.EntityResolution["Inception"]
	if !ok || unresolved.Matched || unresolved.CanonicalName != "Inception" {
		t.Fatalf("not_found entry should keep surface name as canonical, got %+v", unresolved)
	}
}

func TestRunSkipsAlreadyResolvedSurfaceName(t *testing.T) {
	calls := 0
	r := stubResolver{byName: map[string]registry.Lookup{}}
	c := &artifact.Chunk{
		Entities: []artifact.ExtractedEntity{
			{Name: "Leo", Type: "ACTOR"},
			{Name: "Leo", Type: "ACTOR"},
		},
	}
	Run(context.Background(), countingResolver{r, &calls}, c)
	if calls != 1 {
		t.Fatalf("expected one Resolve call for a repeated surface name, got %d", calls)
	}
}

type countingResolver struct {
	inner stubResolver
	calls *int
}

func (c countingResolver) Resolve(ctx context.Context, surfaceName, entityType string) registry.Lookup {
	*c.calls++
	return c.inner.Resolve(ctx, surfaceName, entityType)
}
