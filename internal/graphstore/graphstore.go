// Package graphstore is the typed contract over the labeled property
// graph: nodes with dynamic labels, one undirected RELATIONSHIP edge
// class, chunk nodes, and provenance edges.
package graphstore

import "context"

// Stats summarizes what stats() reports about the graph's current
// contents.
type Stats struct {
	NodeCount         int64
	EdgeCount         int64
	ChunkCount        int64
	UnsummarizedNodes int64
	UnsummarizedEdges int64
}

// SummarizationCandidate is a node or edge whose description list is
// non-empty but whose summary is still empty: C7's unit of work.
type SummarizationCandidate struct {
	IsEdge       bool
	Label        string // node label, empty for edges
	Name         string // node name, or edge source name
	Target       string // empty for nodes, edge target name otherwise
	Descriptions []string
	CanonicalID  string // empty if not yet assigned
}

// Store is the read/write contract every pipeline stage past C2 depends
// on. Implementations must be safe for concurrent use: C6 runs many
// workers against a single shared Store.
type Store interface {
	// UpsertBaseProvenance creates (idempotently) the movie, reviewer and
	// chunk nodes and the HAS_CHUNK / WRITTEN_BY edges between them.
	UpsertBaseProvenance(ctx context.Context, movieID, reviewerID, chunkID, chunkText string) error

	// UpsertEntityWithAccumulatedDescription merges newDescriptions into
	// the node's description list (set-dedup, insertion order preserved)
	// and reports whether the node already existed.
	UpsertEntityWithAccumulatedDescription(ctx context.Context, label, name string, newDescriptions []string) (canonicalID string, wasExisting bool, err error)

	// UpsertMentionsEdge links a chunk to an entity it mentions.
	UpsertMentionsEdge(ctx context.Context, chunkID, entityName, entityLabel string) error

	// UpsertRelationshipSingle enforces at most one edge between the
	// unordered pair (nameA, nameB): existing edges between the pair are
	// replaced by one edge carrying the merged description list and the
	// max of existing and new strength.
	UpsertRelationshipSingle(ctx context.Context, nameA, labelA, nameB, labelB string, newDescriptions []string, strength int) (wasExisting bool, err error)

	// ReadSummarizationCandidates returns every node and edge with a
	// non-empty description and an empty summary.
	ReadSummarizationCandidates(ctx context.Context) ([]SummarizationCandidate, error)

	// WriteSummary replaces a node's or edge's summary.
	WriteSummary(ctx context.Context, c SummarizationCandidate, summary string) error

	// AssignCanonicalID sets canonical_id on a node or edge that doesn't
	// have one yet. It is a no-op (not an error) if already assigned.
	AssignCanonicalID(ctx context.Context, c SummarizationCandidate, canonicalID string) error

	// ListChunks returns every __Chunk__ node's id, text, and canonical_id
	// for C8's chunk-publish flow.
	ListChunks(ctx context.Context) ([]ChunkRow, error)

	// ListSummarizedEntities returns every node with a non-empty summary
	// and canonical_id, for C8's entity-publish flow.
	ListSummarizedEntities(ctx context.Context) ([]EntityRow, error)

	// ClearAll deletes every node and edge. Used by tests and re-seeding.
	ClearAll(ctx context.Context) error

	// Stats reports aggregate counts.
	Stats(ctx context.Context) (Stats, error)
}

// ChunkRow is one __Chunk__ node as read back for index publishing.
type ChunkRow struct {
	ID          string
	Text        string
	CanonicalID string
}

// EntityRow is one summarized entity node as read back for index
// publishing.
type EntityRow struct {
	Name        string
	Label       string
	Summary     string
	CanonicalID string
}

// NeighborEntity is one node reached while expanding outward from a set
// of chunks for query-time retrieval: a MENTIONS hop followed by zero or
// more RELATIONSHIP hops, never crossing into chunk/movie/reviewer
// provenance labels.
type NeighborEntity struct {
	Name         string
	Label        string
	Descriptions []string
	Summary      string
	CanonicalID  string
	Prompt       string
	Hops         int
}

// QueryReader is the read-only contract the query router depends on,
// kept separate from Store because it is only ever exercised from the
// query path, never from ingestion.
type QueryReader interface {
	// Neighborhood returns every domain entity reachable from the given
	// chunk ids via one MENTIONS edge and then up to maxHops RELATIONSHIP
	// edges.
	Neighborhood(ctx context.Context, chunkIDs []string, maxHops int) ([]NeighborEntity, error)

	// EntityPrompt returns the prompt property of the named entity, and
	// whether it has one set at all (absence means the agentic branch is
	// skipped for that entity).
	EntityPrompt(ctx context.Context, name, label string) (prompt string, ok bool, err error)

	// RunCypher executes an LLM-generated, already-parametrized Cypher
	// query for the structured retrieval branch and returns its rows
	// as loosely-typed maps; callers must treat the result defensively.
	RunCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
