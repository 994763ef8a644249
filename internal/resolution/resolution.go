// Package resolution implements the Resolution Stage (C4): calling the
// canonical registry for every extracted surface name and recording the
// outcome into a chunk's resolution map.
package resolution

import (
	"context"

	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

// Resolver is the subset of registry.Registry the resolution stage
// depends on.
type Resolver interface {
	Resolve(ctx context.Context, surfaceName, entityType string) registry.Lookup
}

// Run resolves every entity and relationship endpoint in c against r and
// writes the outcomes into c.EntityResolution. Unresolved surface names
// keep themselves as their own canonical name (the not_found policy): the
// entry is still recorded so downstream stages never re-query for it.
func Run(ctx context.Context, r Resolver, c *artifact.Chunk) {
	if c.EntityResolution == nil {
		c.EntityResolution = domain.ResolutionMap{}
	}

	for _, e := range c.Entities {
		resolveOne(ctx, r, c.EntityResolution, e.Name, e.Type)
	}
	for _, rel := range c.Relationships {
		resolveOne(ctx, r, c.EntityResolution, rel.SourceName, rel.SourceType)
		resolveOne(ctx, r, c.EntityResolution, rel.TargetName, rel.TargetType)
	}
}

func resolveOne(ctx context.Context, r Resolver, m domain.ResolutionMap, surfaceName, entityType string) {
	if surfaceName == "" {
		return
	}
	if _, already := m[surfaceName]; already {
		return
	}
	lookup := r.Resolve(ctx, surfaceName, entityType)
	canonical := lookup.CanonicalName
	if !lookup.Matched {
		canonical = surfaceName
	}
	m[surfaceName] = domain.ResolutionEntry{
		SurfaceName:   surfaceName,
		CanonicalName: canonical,
		EntityType:    entityType,
		Matched:       lookup.Matched,
		MatchType:     lookup.MatchType,
	}
}
