// Package registry implements the Canonical Registry (C1): the search
// index doubling as a name -> canonical-name directory, with a synonym
// set per entity.
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/naeri-labs/filmgraph/internal/domain"
)

// MinMatchScore is the default lexical relevance threshold below which a
// name_exact hit is not trusted, taken from the reference lexical scorer.
const MinMatchScore = 3.4

// Lookup is the result of resolving one surface name against the
// registry.
type Lookup struct {
	CanonicalName string
	Matched       bool
	MatchType     domain.MatchType
}

// Registry resolves surface names to canonical identity and maintains
// the synonym set backing that resolution.
type Registry interface {
	// Resolve implements the deterministic lookup order: name_exact,
	// then synonym_exact, then (if enabled) synonym_partial, else
	// not_found. Index unavailability degrades to not_found rather than
	// propagating an error — callers never see a resolution failure.
	Resolve(ctx context.Context, surfaceName, entityType string) Lookup

	// Merge fetches the record keyed by canonicalID (starting from an
	// empty synonym set if absent), merges newSynonyms and canonicalName
	// into its synonym set per the merge contract, and writes the result
	// back in a single upsert.
	Merge(ctx context.Context, canonicalID, canonicalName, entityType string, newSynonyms []string) error

	// EnsureIndices verifies (creating if absent) the entities and
	// chunks indices, including the vector field mapping and dimension.
	// Called once per run before any writes; a dimension mismatch is a
	// schema error that aborts the run.
	EnsureIndices(ctx context.Context) error

	// UpsertSynonymRecord creates or replaces the full synonym record for
	// a canonical entity, used by C8's entity publish flow.
	UpsertSynonymRecord(ctx context.Context, rec domain.SynonymRecord) error

	// UpsertChunkRecord creates or replaces a chunk record, used by C8's
	// chunk publish flow.
	UpsertChunkRecord(ctx context.Context, rec domain.ChunkRecord) error

	// RefreshChunks triggers a single end-of-stage index refresh so
	// immediately-subsequent queries observe freshly published chunks,
	// resolving Open Question (c): prefer one refresh per stage over a
	// refresh per write.
	RefreshChunks(ctx context.Context) error
}

// MergeSynonyms implements the merge contract: strip, union, sort, drop
// empties. It is pure and associative, independent of call order.
func MergeSynonyms(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, group := range [][]string{existing, added} {
		for _, s := range group {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			set[s] = struct{}{}
		}
	}
	merged := make([]string, 0, len(set))
	for s := range set {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return merged
}
