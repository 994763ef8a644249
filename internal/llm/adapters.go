package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionAdapter satisfies extraction.LLM by wrapping a Provider with
// the extraction prompt template: a chunk of text plus its surrounding
// movie context, asking for the `##`-delimited entity/relationship record
// stream the extraction parser expects.
type ExtractionAdapter struct {
	Provider Provider
}

func (a ExtractionAdapter) ExtractEntities(ctx context.Context, chunkText, movieContext string) (string, error) {
	prompt := fmt.Sprintf(`You are an information extraction engine for film reviews. Given the review excerpt below, extract every named entity (actor, director, movie, character, movie staff) and every relationship between two entities.

Movie context: %s

Review excerpt:
%s

Emit one record per line, records separated by "##". Entity records: (entity|NAME|TYPE|description). Relationship records: (relationship|SOURCE_NAME|SOURCE_TYPE|TARGET_NAME|TARGET_TYPE|description|strength). End the stream with <END>.`, movieContext, chunkText)

	return a.Provider.Complete(ctx, prompt, DefaultOptions)
}

// SummarizationAdapter satisfies summarization.LLM by wrapping a Provider
// with the summarization prompt template and parsing its JSON
// {"entity": ..., "summary": ...} response.
type SummarizationAdapter struct {
	Provider Provider
}

type summarizationResponse struct {
	Entity  string `json:"entity"`
	Summary string `json:"summary"`
}

func (a SummarizationAdapter) Summarize(ctx context.Context, name, joinedDescriptions string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the following accumulated descriptions of "%s" into one concise paragraph. Respond with JSON only: {"entity": "%s", "summary": "..."}.

Descriptions:
%s`, name, name, joinedDescriptions)

	raw, err := a.Provider.Complete(ctx, prompt, CompletionOptions{Temperature: 0.3, MaxTokens: 512})
	if err != nil {
		return "", err
	}
	raw = stripCodeFence(raw)

	var resp summarizationResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", fmt.Errorf("llm: parse summarization response: %w", err)
	}
	return resp.Summary, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractQueryEntities asks the model to list the surface names mentioned
// in a user question, one per line, for C9's entity-extraction step.
func ExtractQueryEntities(ctx context.Context, p Provider, question string) ([]string, error) {
	prompt := fmt.Sprintf(`List every named entity (person, movie, character) mentioned in this question, one per line, with no other text:

%s`, question)
	raw, err := p.Complete(ctx, prompt, CompletionOptions{Temperature: 0, MaxTokens: 256})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line != "" {
			names = append(names, strings.TrimSpace(line))
		}
	}
	return names, nil
}

// RewriteToCypher asks the model for a single openCypher query against
// the graph given a question and its resolved entity names, for C9's
// optional structured graph query branch.
func RewriteToCypher(ctx context.Context, p Provider, question string, resolvedNames []string) (string, error) {
	prompt := fmt.Sprintf(`Translate this question into a single read-only openCypher query against a graph of MOVIE/ACTOR/DIRECTOR/MOVIE_CHARACTER/MOVIE_STAFF nodes connected by RELATIONSHIP edges. Use these resolved canonical names where applicable: %s. Respond with the query only, no explanation.

Question: %s`, strings.Join(resolvedNames, ", "), question)
	raw, err := p.Complete(ctx, prompt, CompletionOptions{Temperature: 0, MaxTokens: 400})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFence(raw)), nil
}

// Answer asks the model to produce the final grounded answer from the
// fused retrieval context, C9's last step.
func Answer(ctx context.Context, p Provider, question, fusedContext string) (string, error) {
	prompt := fmt.Sprintf(`Answer the question using only the context below. If the context does not contain enough information, say so.

Context:
%s

Question: %s`, fusedContext, question)
	return p.Complete(ctx, prompt, CompletionOptions{Temperature: 0.4, MaxTokens: 1024})
}
