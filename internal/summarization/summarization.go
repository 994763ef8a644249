// Package summarization implements the Summarization Stage (C7): joining
// a node or edge's accumulated descriptions into a single LLM-authored
// summary and assigning a canonical id on first summarization.
package summarization

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/stats"
)

// LLM produces a summary for a joined description string. name is the
// entity or edge being summarized; only the summary text is returned.
type LLM interface {
	Summarize(ctx context.Context, name, joinedDescriptions string) (summary string, err error)
}

// CanonicalIDGenerator mints a new canonical id for a node or edge being
// summarized for the first time.
type CanonicalIDGenerator func(label, name string) string

// Stage runs C7 against a graphstore.Store.
type Stage struct {
	Store  graphstore.Store
	LLM    LLM
	NewID  CanonicalIDGenerator
	Stats  *stats.Stage
	Logger *zap.Logger
}

// New returns a Stage with the given dependencies.
func New(store graphstore.Store, llm LLM, newID CanonicalIDGenerator, logger *zap.Logger) *Stage {
	return &Stage{Store: store, LLM: llm, NewID: newID, Stats: stats.NewStage(), Logger: logger}
}

// Run scans the store for summarization candidates and processes each:
// nodes and edges with a non-empty description list and an empty
// summary. A per-candidate LLM or write failure is counted and the stage
// continues; re-running Run after a partial failure is idempotent since
// candidates that already have a summary no longer appear in the scan.
func (s *Stage) Run(ctx context.Context) error {
	candidates, err := s.Store.ReadSummarizationCandidates(ctx)
	if err != nil {
		return fmt.Errorf("summarization: read candidates: %w", err)
	}

	for _, c := range candidates {
		if err := s.processOne(ctx, c); err != nil {
			category := ""
			if ae, ok := apperr.As(err); ok {
				category = string(ae.Type)
			}
			s.Stats.Record(stats.Outcome{Failed: true, Category: category})
			s.Logger.Warn("summarization: candidate failed", zap.String("name", c.Name), zap.Error(err))
			continue
		}
		s.Stats.Record(stats.Outcome{IsEdge: c.IsEdge})
	}
	return nil
}

func (s *Stage) processOne(ctx context.Context, c graphstore.SummarizationCandidate) error {
	joined := strings.Join(c.Descriptions, "\n")
	summary, err := s.LLM.Summarize(ctx, displayName(c), joined)
	if err != nil {
		return fmt.Errorf("llm summarize: %w", err)
	}
	if err := s.Store.WriteSummary(ctx, c, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if c.CanonicalID == "" {
		id := s.NewID(c.Label, c.Name)
		if err := s.Store.AssignCanonicalID(ctx, c, id); err != nil {
			return fmt.Errorf("assign canonical id: %w", err)
		}
	}
	return nil
}

func displayName(c graphstore.SummarizationCandidate) string {
	if c.IsEdge {
		return c.Name + " -- " + c.Target
	}
	return c.Name
}
