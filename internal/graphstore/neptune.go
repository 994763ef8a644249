package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/naeri-labs/filmgraph/internal/apperr"
	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

// labelPattern restricts dynamic labels to the closed set the catalog
// loader and extraction stage can ever produce; labels never come from
// unescaped user text directly.
var labelPattern = map[byte]bool{}

func init() {
	for c := 'A'; c <= 'Z'; c++ {
		labelPattern[byte(c)] = true
	}
	labelPattern['_'] = true
}

func validLabel(label string) bool {
	if label == "" {
		return false
	}
	for i := 0; i < len(label); i++ {
		if !labelPattern[label[i]] {
			return false
		}
	}
	return true
}

// NeptuneStore implements Store against a Neptune openCypher-over-HTTPS
// endpoint, signed with SigV4 for IAM authentication.
type NeptuneStore struct {
	client *sigv4http.Client
}

// NewNeptuneStore wraps a signed HTTP client pointed at a Neptune cluster's
// /openCypher endpoint.
func NewNeptuneStore(client *sigv4http.Client) *NeptuneStore {
	return &NeptuneStore{client: client}
}

type cypherRequest struct {
	Query      string `json:"query"`
	Parameters string `json:"parameters,omitempty"`
}

type cypherResponse struct {
	Results []map[string]json.RawMessage `json:"results"`
}

// exec runs a parametrized openCypher query and returns the raw result
// rows. A non-2xx HTTP status whose body mentions ConcurrentModification
// is the one place this package has to string-match an error message:
// Neptune reports optimistic-concurrency conflicts that way and gives
// callers no structured alternative to branch on.
func (n *NeptuneStore) exec(ctx context.Context, query string, params map[string]any) (*cypherResponse, error) {
	req := cypherRequest{Query: query}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, apperr.Internal("marshal cypher parameters", err)
		}
		req.Parameters = string(raw)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal("marshal cypher request", err)
	}

	respBody, err := n.client.Do(ctx, "/openCypher", body)
	if err != nil {
		var statusErr *sigv4http.StatusError
		if asStatusError(err, &statusErr) && strings.Contains(statusErr.Body, "ConcurrentModification") {
			return nil, apperr.Conflict("neptune concurrent modification", err)
		}
		return nil, apperr.Transient("neptune request failed", err)
	}

	var resp cypherResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, apperr.Internal("unmarshal cypher response", err)
	}
	return &resp, nil
}

func asStatusError(err error, target **sigv4http.StatusError) bool {
	se, ok := err.(*sigv4http.StatusError)
	if ok {
		*target = se
	}
	return ok
}

func (n *NeptuneStore) UpsertBaseProvenance(ctx context.Context, movieID, reviewerID, chunkID, chunkText string) error {
	if !validLabel("MOVIE") || !validLabel("REVIEWER") {
		return apperr.SchemaMismatch("base provenance labels invalid", nil)
	}
	query := `
MERGE (r:REVIEWER {id: $reviewer_id})
MERGE (m:MOVIE {id: $movie_id})
MERGE (m)-[:HAS_CHUNK]->(c:` + graphstoreChunkLabel + ` {id: $chunk_id})
SET c.text = $text
MERGE (c)-[:WRITTEN_BY]->(r)
`
	_, err := n.exec(ctx, query, map[string]any{
		"movie_id": movieID, "reviewer_id": reviewerID, "chunk_id": chunkID, "text": chunkText,
	})
	return err
}

const graphstoreChunkLabel = "__Chunk__"

func (n *NeptuneStore) UpsertEntityWithAccumulatedDescription(ctx context.Context, label, name string, newDescriptions []string) (string, bool, error) {
	if !validLabel(label) {
		return "", false, apperr.SchemaMismatch(fmt.Sprintf("invalid entity label %q", label), nil)
	}

	findQuery := fmt.Sprintf(`MATCH (n:%s {name: $name}) RETURN n.description AS description, n.canonical_id AS canonical_id`, label)
	found, err := n.exec(ctx, findQuery, map[string]any{"name": name})
	if err != nil {
		return "", false, err
	}

	existing, wasExisting, canonicalID := decodeExistingEntity(found)
	merged := mergeDescriptions(existing, newDescriptions)
	descJSON, err := json.Marshal(merged)
	if err != nil {
		return "", wasExisting, apperr.Internal("marshal descriptions", err)
	}

	writeQuery := fmt.Sprintf(`
MERGE (n:%s {name: $name})
SET n.description = $description
`, label)
	_, err = n.exec(ctx, writeQuery, map[string]any{
		"name": name, "description": string(descJSON),
	})
	if err != nil {
		return "", wasExisting, err
	}
	return canonicalID, wasExisting, nil
}

func decodeExistingEntity(resp *cypherResponse) (descriptions []string, wasExisting bool, canonicalID string) {
	if resp == nil || len(resp.Results) == 0 {
		return nil, false, ""
	}
	row := resp.Results[0]
	if raw, ok := row["canonical_id"]; ok {
		_ = json.Unmarshal(raw, &canonicalID)
	}
	if raw, ok := row["description"]; ok {
		var asString string
		if json.Unmarshal(raw, &asString) == nil && asString != "" {
			_ = json.Unmarshal([]byte(asString), &descriptions)
			wasExisting = true
			return
		}
		var asList []string
		if json.Unmarshal(raw, &asList) == nil && len(asList) > 0 {
			descriptions = asList
			wasExisting = true
		}
	}
	return
}

// mergeDescriptions appends new descriptions onto existing ones,
// deduplicating by exact text while preserving first-seen order.
func mergeDescriptions(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, d := range existing {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		merged = append(merged, d)
	}
	for _, d := range added {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		merged = append(merged, d)
	}
	return merged
}

func (n *NeptuneStore) UpsertMentionsEdge(ctx context.Context, chunkID, entityName, entityLabel string) error {
	if !validLabel(entityLabel) {
		return apperr.SchemaMismatch(fmt.Sprintf("invalid entity label %q", entityLabel), nil)
	}
	query := fmt.Sprintf(`
MATCH (c:%s {id: $chunk_id})
MATCH (n:%s {name: $name})
MERGE (n)<-[:MENTIONS]-(c)
`, graphstoreChunkLabel, entityLabel)
	_, err := n.exec(ctx, query, map[string]any{"chunk_id": chunkID, "name": entityName})
	return err
}

func (n *NeptuneStore) UpsertRelationshipSingle(ctx context.Context, nameA, labelA, nameB, labelB string, newDescriptions []string, strength int) (bool, error) {
	if nameA > nameB {
		nameA, nameB = nameB, nameA
		labelA, labelB = labelB, labelA
	}
	if !validLabel(labelA) || !validLabel(labelB) {
		return false, apperr.SchemaMismatch("invalid relationship endpoint label", nil)
	}

	findQuery := `
MATCH (a)-[r:RELATIONSHIP]-(b)
WHERE (a.name = $name_a AND b.name = $name_b) OR (a.name = $name_b AND b.name = $name_a)
RETURN r.description AS description, r.strength AS strength
`
	found, err := n.exec(ctx, findQuery, map[string]any{"name_a": nameA, "name_b": nameB})
	if err != nil {
		return false, err
	}
	existingDesc, existingStrength, wasExisting := decodeExistingEdge(found)

	merged := mergeDescriptions(existingDesc, newDescriptions)
	if existingStrength > strength {
		strength = existingStrength
	}
	descJSON, err := json.Marshal(merged)
	if err != nil {
		return false, apperr.Internal("marshal relationship descriptions", err)
	}

	deleteQuery := `
MATCH (a)-[r:RELATIONSHIP]-(b)
WHERE (a.name = $name_a AND b.name = $name_b) OR (a.name = $name_b AND b.name = $name_a)
DELETE r
`
	if _, err := n.exec(ctx, deleteQuery, map[string]any{"name_a": nameA, "name_b": nameB}); err != nil {
		return wasExisting, err
	}

	createQuery := fmt.Sprintf(`
MATCH (s:%s {name: $name_a})
MATCH (t:%s {name: $name_b})
CREATE (s)-[r:RELATIONSHIP {description: $description, strength: $strength}]->(t)
`, labelA, labelB)
	_, err = n.exec(ctx, createQuery, map[string]any{
		"name_a": nameA, "name_b": nameB, "description": string(descJSON), "strength": strength,
	})
	return wasExisting, err
}

func decodeExistingEdge(resp *cypherResponse) (descriptions []string, strength int, wasExisting bool) {
	if resp == nil || len(resp.Results) == 0 {
		return nil, 0, false
	}
	row := resp.Results[0]
	wasExisting = true
	if raw, ok := row["strength"]; ok {
		_ = json.Unmarshal(raw, &strength)
	}
	if raw, ok := row["description"]; ok {
		var asString string
		if json.Unmarshal(raw, &asString) == nil && asString != "" {
			_ = json.Unmarshal([]byte(asString), &descriptions)
		}
	}
	return
}

func (n *NeptuneStore) ReadSummarizationCandidates(ctx context.Context) ([]SummarizationCandidate, error) {
	nodeQuery := `
MATCH (n)
WHERE n.description IS NOT NULL AND (n.summary IS NULL OR n.summary = '')
  AND NOT n:` + graphstoreChunkLabel + ` AND NOT n:MOVIE AND NOT n:REVIEWER
RETURN labels(n) AS labels, n.name AS name, n.description AS description, n.canonical_id AS canonical_id
`
	edgeQuery := `
MATCH (a)-[r:RELATIONSHIP]->(b)
WHERE r.description IS NOT NULL AND (r.summary IS NULL OR r.summary = '')
RETURN a.name AS source, b.name AS target, r.description AS description, r.canonical_id AS canonical_id
`
	var out []SummarizationCandidate

	nodeResp, err := n.exec(ctx, nodeQuery, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range nodeResp.Results {
		var labels []string
		_ = json.Unmarshal(row["labels"], &labels)
		var name, canonicalID, descJSON string
		_ = json.Unmarshal(row["name"], &name)
		_ = json.Unmarshal(row["canonical_id"], &canonicalID)
		_ = json.Unmarshal(row["description"], &descJSON)
		var descs []string
		_ = json.Unmarshal([]byte(descJSON), &descs)
		label := ""
		if len(labels) > 0 {
			label = labels[0]
		}
		out = append(out, SummarizationCandidate{Label: label, Name: name, Descriptions: descs, CanonicalID: canonicalID})
	}

	edgeResp, err := n.exec(ctx, edgeQuery, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range edgeResp.Results {
		var source, target, canonicalID, descJSON string
		_ = json.Unmarshal(row["source"], &source)
		_ = json.Unmarshal(row["target"], &target)
		_ = json.Unmarshal(row["canonical_id"], &canonicalID)
		_ = json.Unmarshal(row["description"], &descJSON)
		var descs []string
		_ = json.Unmarshal([]byte(descJSON), &descs)
		out = append(out, SummarizationCandidate{IsEdge: true, Name: source, Target: target, Descriptions: descs, CanonicalID: canonicalID})
	}

	return out, nil
}

func (n *NeptuneStore) WriteSummary(ctx context.Context, c SummarizationCandidate, summary string) error {
	var query string
	var params map[string]any
	if c.IsEdge {
		query = `
MATCH (a {name: $source})-[r:RELATIONSHIP]-(b {name: $target})
SET r.summary = $summary
`
		params = map[string]any{"source": c.Name, "target": c.Target, "summary": summary}
	} else {
		query = `MATCH (n {name: $name}) SET n.summary = $summary`
		params = map[string]any{"name": c.Name, "summary": summary}
	}
	_, err := n.exec(ctx, query, params)
	return err
}

func (n *NeptuneStore) AssignCanonicalID(ctx context.Context, c SummarizationCandidate, canonicalID string) error {
	var query string
	var params map[string]any
	if c.IsEdge {
		query = `
MATCH (a {name: $source})-[r:RELATIONSHIP]-(b {name: $target})
WHERE r.canonical_id IS NULL OR r.canonical_id = ''
SET r.canonical_id = $canonical_id
`
		params = map[string]any{"source": c.Name, "target": c.Target, "canonical_id": canonicalID}
	} else {
		query = `
MATCH (n {name: $name})
WHERE n.canonical_id IS NULL OR n.canonical_id = ''
SET n.canonical_id = $canonical_id
`
		params = map[string]any{"name": c.Name, "canonical_id": canonicalID}
	}
	_, err := n.exec(ctx, query, params)
	return err
}

func (n *NeptuneStore) ListChunks(ctx context.Context) ([]ChunkRow, error) {
	query := fmt.Sprintf(`MATCH (c:%s) RETURN c.id AS id, c.text AS text, c.canonical_id AS canonical_id`, graphstoreChunkLabel)
	resp, err := n.exec(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]ChunkRow, 0, len(resp.Results))
	for _, row := range resp.Results {
		var r ChunkRow
		_ = json.Unmarshal(row["id"], &r.ID)
		_ = json.Unmarshal(row["text"], &r.Text)
		_ = json.Unmarshal(row["canonical_id"], &r.CanonicalID)
		rows = append(rows, r)
	}
	return rows, nil
}

func (n *NeptuneStore) ListSummarizedEntities(ctx context.Context) ([]EntityRow, error) {
	query := `
MATCH (n)
WHERE n.summary IS NOT NULL AND n.summary <> '' AND n.canonical_id IS NOT NULL AND n.canonical_id <> ''
RETURN labels(n) AS labels, n.name AS name, n.summary AS summary, n.canonical_id AS canonical_id
`
	resp, err := n.exec(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]EntityRow, 0, len(resp.Results))
	for _, row := range resp.Results {
		var labels []string
		_ = json.Unmarshal(row["labels"], &labels)
		var r EntityRow
		_ = json.Unmarshal(row["name"], &r.Name)
		_ = json.Unmarshal(row["summary"], &r.Summary)
		_ = json.Unmarshal(row["canonical_id"], &r.CanonicalID)
		if len(labels) > 0 {
			r.Label = labels[0]
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (n *NeptuneStore) ClearAll(ctx context.Context) error {
	_, err := n.exec(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

func (n *NeptuneStore) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	nodeResp, err := n.exec(ctx, "MATCH (n) RETURN count(n) AS count", nil)
	if err != nil {
		return s, err
	}
	s.NodeCount = firstInt(nodeResp)

	edgeResp, err := n.exec(ctx, "MATCH ()-[r:RELATIONSHIP]->() RETURN count(r) AS count", nil)
	if err != nil {
		return s, err
	}
	s.EdgeCount = firstInt(edgeResp)

	chunkResp, err := n.exec(ctx, fmt.Sprintf("MATCH (c:%s) RETURN count(c) AS count", graphstoreChunkLabel), nil)
	if err != nil {
		return s, err
	}
	s.ChunkCount = firstInt(chunkResp)

	candidates, err := n.ReadSummarizationCandidates(ctx)
	if err != nil {
		return s, err
	}
	for _, c := range candidates {
		if c.IsEdge {
			s.UnsummarizedEdges++
		} else {
			s.UnsummarizedNodes++
		}
	}

	return s, nil
}

func firstInt(resp *cypherResponse) int64 {
	if resp == nil || len(resp.Results) == 0 {
		return 0
	}
	var n int64
	_ = json.Unmarshal(resp.Results[0]["count"], &n)
	return n
}

// sortedLabels is used by tests asserting label-pair normalization.
func sortedLabels(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// Neighborhood implements QueryReader: one MENTIONS hop out of every
// chunk, then up to maxHops further RELATIONSHIP hops, excluding chunk
// and provenance labels so the result is pure domain entities.
func (n *NeptuneStore) Neighborhood(ctx context.Context, chunkIDs []string, maxHops int) ([]NeighborEntity, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 2 {
		maxHops = 2
	}

	query := fmt.Sprintf(`
MATCH (c:%s)-[:MENTIONS]->(e)
WHERE c.id IN $chunk_ids
OPTIONAL MATCH (e)-[:RELATIONSHIP*1..%d]-(n2)
  WHERE NOT n2:%s AND NOT n2:MOVIE AND NOT n2:REVIEWER
WITH collect(DISTINCT e) + collect(DISTINCT n2) AS found
UNWIND found AS n
WITH DISTINCT n
WHERE n IS NOT NULL AND NOT n:%s AND NOT n:MOVIE AND NOT n:REVIEWER
RETURN labels(n) AS labels, n.name AS name, n.description AS description,
       n.summary AS summary, n.canonical_id AS canonical_id, n.prompt AS prompt
`, graphstoreChunkLabel, maxHops, graphstoreChunkLabel, graphstoreChunkLabel)

	resp, err := n.exec(ctx, query, map[string]any{"chunk_ids": chunkIDs})
	if err != nil {
		return nil, err
	}

	rows := make([]NeighborEntity, 0, len(resp.Results))
	for _, row := range resp.Results {
		var labels []string
		_ = json.Unmarshal(row["labels"], &labels)
		var ne NeighborEntity
		_ = json.Unmarshal(row["name"], &ne.Name)
		_ = json.Unmarshal(row["summary"], &ne.Summary)
		_ = json.Unmarshal(row["canonical_id"], &ne.CanonicalID)
		_ = json.Unmarshal(row["prompt"], &ne.Prompt)
		if raw, ok := row["description"]; ok {
			var serialized string
			if json.Unmarshal(raw, &serialized) == nil && serialized != "" {
				_ = json.Unmarshal([]byte(serialized), &ne.Descriptions)
			}
		}
		if len(labels) > 0 {
			ne.Label = labels[0]
		}
		ne.Hops = maxHops
		rows = append(rows, ne)
	}
	return rows, nil
}

// EntityPrompt implements QueryReader's agentic-gating lookup.
func (n *NeptuneStore) EntityPrompt(ctx context.Context, name, label string) (string, bool, error) {
	if !validLabel(label) {
		return "", false, fmt.Errorf("graphstore: invalid label %q", label)
	}
	query := fmt.Sprintf(`MATCH (n:%s {name: $name}) RETURN n.prompt AS prompt`, label)
	resp, err := n.exec(ctx, query, map[string]any{"name": name})
	if err != nil {
		return "", false, err
	}
	if len(resp.Results) == 0 {
		return "", false, nil
	}
	var prompt string
	_ = json.Unmarshal(resp.Results[0]["prompt"], &prompt)
	return prompt, prompt != "", nil
}

// RunCypher implements QueryReader's escape hatch for the LLM-generated
// structured query branch.
func (n *NeptuneStore) RunCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	resp, err := n.exec(ctx, query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(resp.Results))
	for _, row := range resp.Results {
		decoded := make(map[string]any, len(row))
		for k, raw := range row {
			var v any
			_ = json.Unmarshal(raw, &v)
			decoded[k] = v
		}
		rows = append(rows, decoded)
	}
	return rows, nil
}
