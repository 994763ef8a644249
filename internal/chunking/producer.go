package chunking

import (
	"fmt"

	"github.com/naeri-labs/filmgraph/internal/artifact"
)

// Transcript is one source document to be chunked.
type Transcript struct {
	Text     string
	MovieID  string
	Reviewer string
}

// Produce splits t.Text into windows and returns the corresponding chunk
// artifacts in reading order, ready to be persisted by an artifact.Store.
func Produce(t Transcript, windowSize, overlap int) ([]artifact.Chunk, error) {
	windows := Split(t.Text, windowSize, overlap)
	chunks := make([]artifact.Chunk, 0, len(windows))
	for _, w := range windows {
		hash := Hash(w.Text)
		id, err := ID(t.Reviewer, hash)
		if err != nil {
			return nil, fmt.Errorf("chunking: produce chunk %d: %w", w.Index, err)
		}
		chunks = append(chunks, artifact.Chunk{
			ChunkID:    id,
			ChunkHash:  hash,
			UserQuery:  w.Text,
			MovieID:    t.MovieID,
			Reviewer:   t.Reviewer,
			ChunkIndex: w.Index,
		})
	}
	return chunks, nil
}
