package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

// Embedder produces a fixed-dimension vector for a piece of text. It is
// the one out-of-pack external collaborator this package depends on;
// the embedding model itself lives outside this module.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenSearchRegistry implements Registry against an OpenSearch domain's
// REST API, signed with SigV4.
type OpenSearchRegistry struct {
	client        *sigv4http.Client
	entitiesIndex string
	chunksIndex   string
	dimension     int
	minScore      float64
	partialMatch  bool
	logger        *zap.Logger
}

// Config configures an OpenSearchRegistry.
type Config struct {
	EntitiesIndex string
	ChunksIndex   string
	Dimension     int
	MinScore      float64
	PartialMatch  bool // Open Question (a): enable substring synonym_partial
	Embedder      Embedder
}

// NewOpenSearchRegistry returns a Registry backed by client.
func NewOpenSearchRegistry(client *sigv4http.Client, cfg Config, logger *zap.Logger) *OpenSearchRegistry {
	if cfg.MinScore == 0 {
		cfg.MinScore = MinMatchScore
	}
	return &OpenSearchRegistry{
		client: client, entitiesIndex: cfg.EntitiesIndex, chunksIndex: cfg.ChunksIndex,
		dimension: cfg.Dimension, minScore: cfg.MinScore, partialMatch: cfg.PartialMatch, logger: logger,
	}
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type entitySource struct {
	Name        string    `json:"name"`
	Synonyms    []string  `json:"synonyms"`
	EntityType  string    `json:"entity_type"`
	Summary     string    `json:"summary"`
	SummaryVec  []float32 `json:"summary_vec"`
	CanonicalID string    `json:"canonical_id"`
}

func (r *OpenSearchRegistry) Resolve(ctx context.Context, surfaceName, entityType string) Lookup {
	if hit, ok := r.searchNameExact(ctx, surfaceName, entityType); ok {
		return Lookup{CanonicalName: hit.Name, Matched: true, MatchType: domain.MatchNameExact}
	}
	if hit, ok := r.searchSynonymExact(ctx, surfaceName, entityType); ok {
		return Lookup{CanonicalName: hit.Name, Matched: true, MatchType: domain.MatchSynonymExact}
	}
	if r.partialMatch {
		if hit, ok := r.searchSynonymPartial(ctx, surfaceName, entityType); ok {
			return Lookup{CanonicalName: hit.Name, Matched: true, MatchType: domain.MatchSynonymPartial}
		}
	}
	return Lookup{CanonicalName: surfaceName, Matched: false, MatchType: domain.MatchNone}
}

func (r *OpenSearchRegistry) searchNameExact(ctx context.Context, name, entityType string) (*entitySource, bool) {
	body := map[string]any{
		"size": 5,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{map[string]any{"match": map[string]any{"name": name}}},
				"filter": []any{map[string]any{"term": map[string]any{"entity_type": entityType}}},
			},
		},
	}
	hits, err := r.search(ctx, r.entitiesIndex, body)
	if err != nil || len(hits) == 0 {
		return nil, false
	}
	best := bestHit(hits, r.minScore)
	if best == nil {
		return nil, false
	}
	var src entitySource
	if err := json.Unmarshal(best.Source, &src); err != nil {
		return nil, false
	}
	return &src, true
}

func (r *OpenSearchRegistry) searchSynonymExact(ctx context.Context, name, entityType string) (*entitySource, bool) {
	body := map[string]any{
		"size": 5,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{map[string]any{"term": map[string]any{"synonyms": name}}},
				"filter": []any{map[string]any{"term": map[string]any{"entity_type": entityType}}},
			},
		},
	}
	hits, err := r.search(ctx, r.entitiesIndex, body)
	if err != nil || len(hits) == 0 {
		return nil, false
	}
	best := bestHit(hits, 0)
	var src entitySource
	if err := json.Unmarshal(best.Source, &src); err != nil {
		return nil, false
	}
	return &src, true
}

func (r *OpenSearchRegistry) searchSynonymPartial(ctx context.Context, name, entityType string) (*entitySource, bool) {
	body := map[string]any{
		"size": 5,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{map[string]any{"wildcard": map[string]any{"synonyms": "*" + strings.ToLower(name) + "*"}}},
				"filter": []any{map[string]any{"term": map[string]any{"entity_type": entityType}}},
			},
		},
	}
	hits, err := r.search(ctx, r.entitiesIndex, body)
	if err != nil || len(hits) == 0 {
		return nil, false
	}
	best := bestHit(hits, 0)
	var src entitySource
	if err := json.Unmarshal(best.Source, &src); err != nil {
		return nil, false
	}
	return &src, true
}

// bestHit picks the highest-scored hit at or above minScore, with a
// stable tie-break on canonical name ascending, then on document id.
func bestHit(hits []searchHit, minScore float64) *searchHit {
	name := func(h searchHit) string {
		var src struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(h.Source, &src)
		return src.Name
	}
	candidates := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= minScore {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if ni, nj := name(candidates[i]), name(candidates[j]); ni != nj {
			return ni < nj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0]
}

func (r *OpenSearchRegistry) search(ctx context.Context, index string, body map[string]any) ([]searchHit, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(ctx, "/"+index+"/_search", raw)
	if err != nil {
		// Index unavailable degrades to "no hits", never an error to the
		// caller: Resolve() always returns a usable Lookup.
		r.logger.Warn("registry: search failed, degrading to not_found", zap.String("index", index), zap.Error(err))
		return nil, nil
	}
	var sr searchResponse
	if err := json.Unmarshal(resp, &sr); err != nil {
		return nil, err
	}
	return sr.Hits.Hits, nil
}

func (r *OpenSearchRegistry) Merge(ctx context.Context, canonicalID, canonicalName, entityType string, newSynonyms []string) error {
	existing, found := r.findByCanonicalID(ctx, canonicalID)
	var current []string
	if found {
		current = existing.Synonyms
	}
	merged := MergeSynonyms(current, append(newSynonyms, canonicalName))

	doc := map[string]any{
		"doc": map[string]any{
			"name":        canonicalName,
			"synonyms":    merged,
			"entity_type": entityType,
			"canonical_id": canonicalID,
		},
		"doc_as_upsert": true,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("registry: marshal merge doc: %w", err)
	}
	_, err = r.client.Do(ctx, "/"+r.entitiesIndex+"/_update/"+canonicalID, raw)
	return err
}

func (r *OpenSearchRegistry) findByCanonicalID(ctx context.Context, canonicalID string) (*entitySource, bool) {
	body := map[string]any{"size": 1, "query": map[string]any{"term": map[string]any{"canonical_id": canonicalID}}}
	hits, err := r.search(ctx, r.entitiesIndex, body)
	if err != nil || len(hits) == 0 {
		return nil, false
	}
	var src entitySource
	if err := json.Unmarshal(hits[0].Source, &src); err != nil {
		return nil, false
	}
	return &src, true
}

// EnsureIndices creates the entities and chunks indices if absent, or
// verifies an existing index's vector mapping still matches r.dimension
// if present. A mismatch is a fatal schema error: writing vectors of the
// configured dimension into a differently-mapped index would fail or
// silently store the wrong shape, so this must be caught before any
// stage starts writing rather than surfacing as a per-write error.
func (r *OpenSearchRegistry) EnsureIndices(ctx context.Context) error {
	for _, idx := range []struct {
		name     string
		vecField string
	}{
		{r.entitiesIndex, "summary_vec"},
		{r.chunksIndex, "context_vec"},
	} {
		if err := r.verifyOrCreateIndex(ctx, idx.name, idx.vecField); err != nil {
			return err
		}
	}
	return nil
}

// verifyOrCreateIndex creates index with a knn_vector mapping for
// vecField if it doesn't exist yet, or reads the existing mapping back
// and confirms vecField is still a knn_vector of dimension r.dimension.
func (r *OpenSearchRegistry) verifyOrCreateIndex(ctx context.Context, index, vecField string) error {
	raw, err := r.client.Get(ctx, "/"+index+"/_mapping")
	if err != nil {
		var statusErr *sigv4http.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return r.createIndex(ctx, index, vecField)
		}
		return fmt.Errorf("registry: read %s mapping: %w", index, err)
	}

	var resp map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type      string `json:"type"`
				Dimension int    `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("registry: decode %s mapping: %w", index, err)
	}
	body, ok := resp[index]
	if !ok {
		return fmt.Errorf("registry: mapping response missing %s", index)
	}
	field, ok := body.Mappings.Properties[vecField]
	if !ok {
		return apperr.SchemaMismatch(fmt.Sprintf("index %s has no %s mapping", index, vecField), nil)
	}
	if field.Type != "knn_vector" || field.Dimension != r.dimension {
		return apperr.SchemaMismatch(fmt.Sprintf(
			"index %s field %s is %s(dim=%d), want knn_vector(dim=%d)",
			index, vecField, field.Type, field.Dimension, r.dimension), nil)
	}
	r.logger.Debug("registry: verified existing index mapping", zap.String("index", index))
	return nil
}

func (r *OpenSearchRegistry) createIndex(ctx context.Context, index, vecField string) error {
	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				vecField: map[string]any{
					"type":      "knn_vector",
					"dimension": r.dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "l2",
						"engine":     "nmslib",
					},
				},
			},
		},
		"settings": map[string]any{"index.knn": true},
	}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("registry: marshal index mapping: %w", err)
	}
	if _, err := r.client.Do(ctx, "/"+index, raw); err != nil {
		return fmt.Errorf("registry: create index %s: %w", index, err)
	}
	r.logger.Info("registry: created index", zap.String("index", index))
	return nil
}

func (r *OpenSearchRegistry) UpsertSynonymRecord(ctx context.Context, rec domain.SynonymRecord) error {
	if len(rec.SummaryVec) != r.dimension {
		return fmt.Errorf("registry: summary_vec has dimension %d, want %d", len(rec.SummaryVec), r.dimension)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: marshal synonym record: %w", err)
	}
	_, err = r.client.Do(ctx, "/"+r.entitiesIndex+"/_doc/"+rec.CanonicalID, raw)
	return err
}

func (r *OpenSearchRegistry) UpsertChunkRecord(ctx context.Context, rec domain.ChunkRecord) error {
	if len(rec.ContextVec) != r.dimension {
		return fmt.Errorf("registry: context_vec has dimension %d, want %d", len(rec.ContextVec), r.dimension)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: marshal chunk record: %w", err)
	}
	_, err = r.client.Do(ctx, "/"+r.chunksIndex+"/_doc/"+rec.CanonicalID, raw)
	return err
}

func (r *OpenSearchRegistry) RefreshChunks(ctx context.Context) error {
	_, err := r.client.Do(ctx, "/"+r.chunksIndex+"/_refresh", nil)
	return err
}

type chunkSource struct {
	Context     string    `json:"context"`
	ContextVec  []float32 `json:"context_vec"`
	CanonicalID string    `json:"canonical_id"`
}

// SearchChunksKNN runs an HNSW k-nearest-neighbor query against the
// chunks index for C9's chunk-KNN retrieval branch.
func (r *OpenSearchRegistry) SearchChunksKNN(ctx context.Context, vec []float32, k int) ([]domain.ChunkRecord, error) {
	if len(vec) != r.dimension {
		return nil, fmt.Errorf("registry: query vector has dimension %d, want %d", len(vec), r.dimension)
	}
	if k <= 0 {
		k = 10
	}
	body := map[string]any{
		"size": k,
		"query": map[string]any{
			"knn": map[string]any{
				"context_vec": map[string]any{"vector": vec, "k": k},
			},
		},
	}
	hits, err := r.search(ctx, r.chunksIndex, body)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChunkRecord, 0, len(hits))
	for _, h := range hits {
		var src chunkSource
		if err := json.Unmarshal(h.Source, &src); err != nil {
			continue
		}
		out = append(out, domain.ChunkRecord{Context: src.Context, ContextVec: src.ContextVec, CanonicalID: src.CanonicalID})
	}
	return out, nil
}
