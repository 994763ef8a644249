package extraction

import (
	"context"
	"fmt"

	"github.com/naeri-labs/filmgraph/internal/artifact"
)

// LLM produces the delimited-record extraction output for a chunk of
// text given its surrounding movie context.
type LLM interface {
	ExtractEntities(ctx context.Context, chunkText, movieContext string) (string, error)
}

// Run extracts entities and relationships for every chunk in chunks by
// calling llm, parsing its output, and appending the results to each
// chunk artifact. A per-chunk LLM failure is recorded and that chunk's
// extraction fields are left empty; it never aborts the batch.
func Run(ctx context.Context, llm LLM, chunks []*artifact.Chunk, movieContext func(*artifact.Chunk) string) []error {
	var failures []error
	for _, c := range chunks {
		ctxStr := ""
		if movieContext != nil {
			ctxStr = movieContext(c)
		}
		out, err := llm.ExtractEntities(ctx, c.UserQuery, ctxStr)
		if err != nil {
			failures = append(failures, &ErrExtraction{ChunkID: c.ChunkID, Err: err})
			continue
		}
		entities, relationships := Parse(out)
		c.Entities = entities
		c.Relationships = relationships
	}
	return failures
}

// ErrExtraction wraps a single chunk's LLM failure for logging without
// aborting the rest of the batch.
type ErrExtraction struct {
	ChunkID string
	Err     error
}

func (e *ErrExtraction) Error() string {
	return fmt.Sprintf("extraction: chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ErrExtraction) Unwrap() error { return e.Err }
