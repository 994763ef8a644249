// Package query implements the Query Router (C9): entity extraction from
// a question, resolution against the canonical registry, a concurrent
// chunk-KNN / structured-graph retrieval fan-out, per-entity agentic
// gating, and a final fused-context answer call.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/llm"
	"github.com/naeri-labs/filmgraph/internal/registry"
)

// DefaultTopKChunks is the chunk-KNN branch's default result size.
const DefaultTopKChunks = 5

// DefaultNeighborhoodHops matches the reference retrieval depth: one
// MENTIONS hop plus up to two further RELATIONSHIP hops.
const DefaultNeighborhoodHops = 2

// DefaultAgentPoolSize bounds concurrent agentic-gating dispatches.
const DefaultAgentPoolSize = 5

// Embedder produces a fixed-dimension vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher is the chunk-KNN capability the search index exposes,
// kept separate from registry.Registry because it is only ever exercised
// from the query path.
type ChunkSearcher interface {
	SearchChunksKNN(ctx context.Context, vec []float32, k int) ([]domain.ChunkRecord, error)
}

// Engine wires every C9 collaborator: the canonical registry for
// resolution, the graph for neighborhood expansion and structured
// queries, the search index for chunk KNN, the LLM for every prompted
// step, and an optional web-search tool for the agentic branch.
type Engine struct {
	Registry      registry.Registry
	ChunkSearcher ChunkSearcher
	Graph         graphstore.QueryReader
	Embedder      Embedder
	LLM           llm.Provider
	WebSearch     WebSearchTool

	TopKChunks         int
	NeighborhoodHops   int
	AgentPoolSize      int
	UseStructuredQuery bool

	Logger *zap.Logger
}

// New returns an Engine with reference defaults; callers override fields
// they need to change after construction.
func New(reg registry.Registry, searcher ChunkSearcher, graph graphstore.QueryReader, embedder Embedder, provider llm.Provider, logger *zap.Logger) *Engine {
	return &Engine{
		Registry: reg, ChunkSearcher: searcher, Graph: graph, Embedder: embedder, LLM: provider,
		TopKChunks: DefaultTopKChunks, NeighborhoodHops: DefaultNeighborhoodHops,
		AgentPoolSize: DefaultAgentPoolSize, Logger: logger,
	}
}

// Result is the fused answer plus the grounding material it was built
// from, returned so callers can show their work.
type Result struct {
	Answer         string
	Chunks         []domain.ChunkRecord
	Entities       []graphstore.NeighborEntity
	AgenticOutputs map[string]string
}

// Run executes the full C9 flow for one question, honoring ctx's
// deadline: retrieval branches and agent tasks that do not finish in
// time contribute nothing rather than blocking the answer.
func (e *Engine) Run(ctx context.Context, question string) (*Result, error) {
	surfaceNames, err := llm.ExtractQueryEntities(ctx, e.LLM, question)
	if err != nil {
		e.Logger.Warn("query: entity extraction failed", zap.Error(err))
	}

	resolved := e.resolveAll(ctx, surfaceNames)

	var chunks []domain.ChunkRecord
	var chunkEntities []graphstore.NeighborEntity
	var structuredRows []map[string]any

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chunks, chunkEntities = e.chunkRetrieval(ctx, question)
	}()
	go func() {
		defer wg.Done()
		if e.UseStructuredQuery {
			structuredRows = e.structuredRetrieval(ctx, question, resolved)
		}
	}()
	wg.Wait()

	entities := mergeEntities(chunkEntities, resolvedEntities(resolved))
	agentic := e.runAgents(ctx, entities)

	fused := fuse(question, chunks, entities, structuredRows, agentic)
	answer, err := llm.Answer(ctx, e.LLM, question, fused)
	if err != nil {
		return nil, fmt.Errorf("query: final answer: %w", err)
	}

	return &Result{Answer: answer, Chunks: chunks, Entities: entities, AgenticOutputs: agentic}, nil
}

func (e *Engine) resolveAll(ctx context.Context, surfaceNames []string) map[string]registry.Lookup {
	resolved := make(map[string]registry.Lookup, len(surfaceNames))
	for _, name := range surfaceNames {
		if name == "" {
			continue
		}
		resolved[name] = e.Registry.Resolve(ctx, name, "")
	}
	return resolved
}

func resolvedEntities(resolved map[string]registry.Lookup) []graphstore.NeighborEntity {
	out := make([]graphstore.NeighborEntity, 0, len(resolved))
	for surface, lookup := range resolved {
		name := lookup.CanonicalName
		if name == "" {
			name = surface
		}
		out = append(out, graphstore.NeighborEntity{Name: name})
	}
	return out
}

// chunkRetrieval implements step 3a: embed the question, KNN against the
// chunk index, then expand each hit's neighborhood in the graph.
func (e *Engine) chunkRetrieval(ctx context.Context, question string) ([]domain.ChunkRecord, []graphstore.NeighborEntity) {
	if e.Embedder == nil || e.ChunkSearcher == nil {
		return nil, nil
	}
	vec, err := e.Embedder.Embed(ctx, question)
	if err != nil {
		e.Logger.Warn("query: embed question failed", zap.Error(err))
		return nil, nil
	}
	k := e.TopKChunks
	if k <= 0 {
		k = DefaultTopKChunks
	}
	chunks, err := e.ChunkSearcher.SearchChunksKNN(ctx, vec, k)
	if err != nil {
		e.Logger.Warn("query: chunk KNN failed", zap.Error(err))
		return nil, nil
	}
	if e.Graph == nil || len(chunks) == 0 {
		return chunks, nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.CanonicalID
	}
	hops := e.NeighborhoodHops
	if hops <= 0 {
		hops = DefaultNeighborhoodHops
	}
	neighbors, err := e.Graph.Neighborhood(ctx, ids, hops)
	if err != nil {
		e.Logger.Warn("query: neighborhood expansion failed", zap.Error(err))
		return chunks, nil
	}
	return chunks, neighbors
}

// structuredRetrieval implements step 3b: an optional LLM-rewritten
// Cypher query against the graph, run only when Engine.UseStructuredQuery
// is set — the reference pipeline treats this branch as optional.
func (e *Engine) structuredRetrieval(ctx context.Context, question string, resolved map[string]registry.Lookup) []map[string]any {
	if e.Graph == nil {
		return nil
	}
	names := make([]string, 0, len(resolved))
	for _, lookup := range resolved {
		if lookup.Matched {
			names = append(names, lookup.CanonicalName)
		}
	}
	cypher, err := llm.RewriteToCypher(ctx, e.LLM, question, names)
	if err != nil || cypher == "" {
		if err != nil {
			e.Logger.Warn("query: cypher rewrite failed", zap.Error(err))
		}
		return nil
	}
	rows, err := e.Graph.RunCypher(ctx, cypher, nil)
	if err != nil {
		e.Logger.Warn("query: structured query failed", zap.Error(err))
		return nil
	}
	return rows
}

// runAgents implements step 4: agentic gating. Every distinct entity with
// a prompt property dispatches an agent task on a bounded pool; failures
// and a missing prompt both degrade to no contribution for that entity.
func (e *Engine) runAgents(ctx context.Context, entities []graphstore.NeighborEntity) map[string]string {
	pool := e.AgentPoolSize
	if pool <= 0 {
		pool = DefaultAgentPoolSize
	}

	seen := make(map[string]bool, len(entities))
	tasks := make([]graphstore.NeighborEntity, 0, len(entities))
	for _, ent := range entities {
		if ent.Name == "" || seen[ent.Name] {
			continue
		}
		seen[ent.Name] = true
		tasks = append(tasks, ent)
	}

	results := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, pool)

	for _, ent := range tasks {
		ent := ent
		prompt := ent.Prompt
		if prompt == "" && e.Graph != nil {
			if p, ok, err := e.Graph.EntityPrompt(ctx, ent.Name, ent.Label); err == nil && ok {
				prompt = p
			}
		}
		if prompt == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := runAgent(ctx, e.LLM, e.WebSearch, e.Graph, ent.Name, prompt)
			if err != nil {
				e.Logger.Warn("query: agent task failed, degrading", zap.String("entity", ent.Name), zap.Error(err))
				return
			}
			mu.Lock()
			results[ent.Name] = out
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func mergeEntities(groups ...[]graphstore.NeighborEntity) []graphstore.NeighborEntity {
	seen := make(map[string]bool)
	var out []graphstore.NeighborEntity
	for _, g := range groups {
		for _, ent := range g {
			if ent.Name == "" || seen[ent.Name] {
				continue
			}
			seen[ent.Name] = true
			out = append(out, ent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fuse builds the single context handed to the final LLM call: question,
// top chunks, entity bullets, and agentic outputs grouped by entity.
func fuse(question string, chunks []domain.ChunkRecord, entities []graphstore.NeighborEntity, structuredRows []map[string]any, agentic map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)

	if len(chunks) > 0 {
		b.WriteString("Relevant review excerpts:\n")
		for _, c := range chunks {
			text := c.Context
			if len(text) > 500 {
				text = text[:500] + "…"
			}
			fmt.Fprintf(&b, "- %s\n", text)
		}
		b.WriteString("\n")
	}

	if len(entities) > 0 {
		b.WriteString("Known entities:\n")
		for _, e := range entities {
			desc := e.Summary
			if desc == "" {
				desc = strings.Join(e.Descriptions, "; ")
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Label, desc)
		}
		b.WriteString("\n")
	}

	if len(structuredRows) > 0 {
		b.WriteString("Structured graph query results:\n")
		for _, row := range structuredRows {
			fmt.Fprintf(&b, "- %v\n", row)
		}
		b.WriteString("\n")
	}

	if len(agentic) > 0 {
		b.WriteString("Agent-provided context:\n")
		names := make([]string, 0, len(agentic))
		for name := range agentic {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, agentic[name])
		}
	}

	return b.String()
}
