// Package embedding is the one out-of-pack external collaborator the
// resolution registry, the index publisher, and the query router's
// chunk-KNN branch depend on: text in, a fixed-dimension vector out.
package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/naeri-labs/filmgraph/internal/domain"
	"github.com/naeri-labs/filmgraph/pkg/sigv4http"
)

// Embedder produces a domain.EmbeddingDimension-length vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BedrockEmbedder implements Embedder against a Bedrock Titan embeddings
// model, signed with SigV4 the same way the graph and index clients are.
type BedrockEmbedder struct {
	client  *sigv4http.Client
	modelID string
}

// NewBedrockEmbedder returns an Embedder that invokes modelID on client.
func NewBedrockEmbedder(client *sigv4http.Client, modelID string) *BedrockEmbedder {
	return &BedrockEmbedder{client: client, modelID: modelID}
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}
	raw, err := e.client.Do(ctx, "/model/"+e.modelID+"/invoke", body)
	if err != nil {
		return nil, fmt.Errorf("embedding: invoke %s: %w", e.modelID, err)
	}
	var resp titanEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}
	if len(resp.Embedding) != domain.EmbeddingDimension {
		return nil, fmt.Errorf("embedding: got dimension %d, want %d", len(resp.Embedding), domain.EmbeddingDimension)
	}
	return resp.Embedding, nil
}
