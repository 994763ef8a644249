// Package llm is the one out-of-pack external collaborator every stage
// that calls a language model depends on: extraction, summarization, and
// the query router's entity extraction / query-to-Cypher / final-answer
// calls. The model itself is out of scope; this package only owns the
// Provider contract and a Bedrock-backed implementation of it.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

// CompletionOptions configures a single completion call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider is the minimal contract every prompt-driven stage depends on:
// a stateless prompt in, completion text out.
type Provider interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	IsAvailable() bool
}

// DefaultOptions matches the reference pipeline's extraction/summarization
// call shape: low temperature for deterministic, parseable output.
var DefaultOptions = CompletionOptions{Temperature: 0.2, MaxTokens: 2048}

// BedrockProvider implements Provider against a Bedrock Anthropic-messages
// model, signed with SigV4 the same way the graph and index clients are.
type BedrockProvider struct {
	client  *sigv4http.Client
	modelID string
}

// NewBedrockProvider returns a Provider that invokes modelID on client.
func NewBedrockProvider(client *sigv4http.Client, modelID string) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: modelID}
}

func (p *BedrockProvider) IsAvailable() bool { return p.client != nil }

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockInvokeRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockInvokeResponse struct {
	Content []bedrockContentBlock `json:"content"`
}

func (p *BedrockProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if !p.IsAvailable() {
		return "", fmt.Errorf("llm: bedrock provider is not available")
	}
	if opts.MaxTokens == 0 {
		opts = DefaultOptions
	}
	req := bedrockInvokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	raw, err := p.client.Do(ctx, "/model/"+p.modelID+"/invoke", body)
	if err != nil {
		return "", fmt.Errorf("llm: invoke %s: %w", p.modelID, err)
	}

	var resp bedrockInvokeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("llm: parse response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("llm: empty response content")
	}
	return resp.Content[0].Text, nil
}
