// Package domain holds the shared types that flow between pipeline stages:
// entities, relationships, chunks, and the resolution map that ties surface
// names to canonical identity.
package domain

import "fmt"

// EmbeddingDimension is the fixed length of every vector written to or
// read from the search index. A run that observes any other length is a
// schema mismatch and must abort before writing.
const EmbeddingDimension = 1024

// ChunkLabel is the graph node label for a document chunk.
const ChunkLabel = "__Chunk__"

// MatchType records how a surface name was resolved to a canonical entity.
type MatchType string

const (
	MatchNone           MatchType = "not_found"
	MatchNameExact      MatchType = "name_exact"
	MatchSynonymExact   MatchType = "synonym_exact"
	MatchSynonymPartial MatchType = "synonym_partial"
)

// Entity is an extracted or canonical graph node: a person, organization,
// film, or other labeled concept mentioned across the corpus.
type Entity struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	CanonicalID  string   `json:"canonical_id,omitempty"`
	Descriptions []string `json:"descriptions,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
}

// Relationship is an undirected edge between two entities, identified by
// the canonical orientation (smaller name first) so that both extraction
// directions collapse onto the same graph edge.
type Relationship struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	Descriptions []string `json:"descriptions,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Strength     int      `json:"strength"`
}

// Canonicalize returns r with Source/Target ordered so the lexicographically
// smaller name comes first, matching the graph store's undirected storage
// convention.
func (r Relationship) Canonicalize() Relationship {
	if r.Source > r.Target {
		r.Source, r.Target = r.Target, r.Source
	}
	return r
}

// Key returns the canonical (source, target) pair used to deduplicate
// relationships regardless of extraction order.
func (r Relationship) Key() string {
	c := r.Canonicalize()
	return fmt.Sprintf("%s\x00%s", c.Source, c.Target)
}

// Chunk is a contiguous slice of a source document, the unit that
// extraction and retrieval both operate on.
type Chunk struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CanonicalID string `json:"canonical_id,omitempty"`
	SourceDoc   string `json:"source_doc"`
	Index       int    `json:"chunk_index"`
}

// ResolutionEntry is one row of the resolution map built by C4: it tells
// downstream stages what canonical entity (if any) a surface name refers
// to, and how confidently.
type ResolutionEntry struct {
	SurfaceName   string    `json:"surface_name"`
	CanonicalName string    `json:"canonical_name"`
	EntityType    string    `json:"entity_type"`
	Matched       bool      `json:"matched"`
	MatchType     MatchType `json:"match_type"`
}

// ResolutionMap resolves surface names to canonical identity, falling
// back to the surface name itself when nothing matched.
type ResolutionMap map[string]ResolutionEntry

// Resolve returns the canonical name for surfaceName, or surfaceName
// itself if the map has no entry or no match for it.
func (m ResolutionMap) Resolve(surfaceName string) string {
	entry, ok := m[surfaceName]
	if !ok || !entry.Matched {
		return surfaceName
	}
	return entry.CanonicalName
}

// SynonymRecord is a search-index document of type "entity": the unit
// C8 publishes and C1/C9 query against for name resolution and semantic
// search.
type SynonymRecord struct {
	Name       string    `json:"name"`
	Synonyms   []string  `json:"synonyms"`
	EntityType string    `json:"entity_type"`
	Summary    string    `json:"summary"`
	SummaryVec []float32 `json:"summary_vec"`
	CanonicalID string   `json:"canonical_id"`
}

// ChunkRecord is a search-index document of type "chunk": the unit C8
// publishes and C9 queries against for chunk-level KNN retrieval.
type ChunkRecord struct {
	Context     string    `json:"context"`
	ContextVec  []float32 `json:"context_vec"`
	CanonicalID string    `json:"canonical_id"`
}
