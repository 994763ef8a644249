package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/llm"
)

// WebSearchTool is the agentic branch's one out-of-pack external
// collaborator: a web-search call keyed by entity and a caller-chosen
// search type (e.g. "news", "general").
type WebSearchTool interface {
	Search(ctx context.Context, query, searchType string) (string, error)
}

// Tool is one capability an agent task may invoke, named per the
// agentic-gating contract (search_neptune, search_web).
type Tool interface {
	Name() string
	Call(ctx context.Context, entity string) (string, error)
}

// neptuneTool answers search_neptune(entity) by reading the summary and
// description of every graph node with that name.
type neptuneTool struct {
	graph graphstore.QueryReader
}

func (t neptuneTool) Name() string { return "search_neptune" }

func (t neptuneTool) Call(ctx context.Context, entity string) (string, error) {
	if t.graph == nil {
		return "", fmt.Errorf("query: no graph reader configured for search_neptune")
	}
	rows, err := t.graph.RunCypher(ctx, "MATCH (n {name: $name}) RETURN n.summary AS summary, n.description AS description", map[string]any{"name": entity})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%v %v\n", row["summary"], row["description"])
	}
	return b.String(), nil
}

// webTool answers search_web(entity, search_type) via the configured
// WebSearchTool.
type webTool struct {
	search WebSearchTool
}

func (t webTool) Name() string { return "search_web" }

func (t webTool) Call(ctx context.Context, entity string) (string, error) {
	if t.search == nil {
		return "", fmt.Errorf("query: no web search tool configured for search_web")
	}
	return t.search.Search(ctx, entity, "news")
}

// runAgent dispatches one agentic-gating task for entity: its system
// prompt is the entity's prompt property with "{name}" substituted, and
// it has access to search_neptune and search_web. A single non-streaming
// LLM call stands in for the agent's tool-use loop: both tool outputs
// are gathered up front and handed to the model alongside the prompt,
// since neither tool here benefits from iterative refinement.
func runAgent(ctx context.Context, provider llm.Provider, webSearch WebSearchTool, graph graphstore.QueryReader, entity, entityPrompt string) (string, error) {
	tools := []Tool{neptuneTool{graph: graph}, webTool{search: webSearch}}

	var toolOutputs strings.Builder
	for _, tool := range tools {
		out, err := tool.Call(ctx, entity)
		if err != nil {
			continue
		}
		if out == "" {
			continue
		}
		fmt.Fprintf(&toolOutputs, "[%s]\n%s\n", tool.Name(), out)
	}

	systemPrompt := strings.ReplaceAll(entityPrompt, "{name}", entity)
	prompt := fmt.Sprintf("%s\n\nTool results:\n%s", systemPrompt, toolOutputs.String())
	return provider.Complete(ctx, prompt, llm.CompletionOptions{Temperature: 0.5, MaxTokens: 512})
}
