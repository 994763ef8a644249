// Package stats aggregates per-stage outcome counters under a single mutex
// and exports them to whichever Sink the process is wired with.
package stats

import (
	"context"
	"sync"
	"time"
)

// Outcome is the typed result a worker reports for one unit of work,
// mirroring the "exceptions-as-control-flow -> result records" design: a
// worker never propagates an error past its own task, it returns one of
// these and the pool aggregates it.
type Outcome struct {
	Existing bool // true if the write touched an existing node/edge
	IsEdge   bool
	Failed   bool
	Category string // apperr.Type string, empty on success
}

// Stage aggregates Outcomes for one run of one pipeline stage. All methods
// are safe for concurrent use; it is the only cross-worker shared state
// besides the failure queue, and each is guarded by its own mutex.
type Stage struct {
	mu sync.Mutex

	Processed int
	New       int
	Existing  int
	Nodes     int
	Edges     int
	Failed    int
	Skipped   int
	ByCategory map[string]int
}

// NewStage returns a zeroed Stage ready to record outcomes.
func NewStage() *Stage {
	return &Stage{ByCategory: make(map[string]int)}
}

// Record folds one worker outcome into the stage totals.
func (s *Stage) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	if o.Failed {
		s.Failed++
		if o.Category != "" {
			s.ByCategory[o.Category]++
		}
		return
	}
	if o.Existing {
		s.Existing++
	} else {
		s.New++
	}
	if o.IsEdge {
		s.Edges++
	} else {
		s.Nodes++
	}
}

// Skip records a unit of work that was deliberately skipped (a malformed
// record, an entity with an empty name) rather than failed.
func (s *Stage) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.Skipped++
}

// Snapshot is an immutable copy of a Stage's counters, safe to hand to a
// Sink or print without holding the stage's lock.
type Snapshot struct {
	Processed, New, Existing, Nodes, Edges, Failed, Skipped int
	ByCategory map[string]int
}

// Snapshot copies the current counters.
func (s *Stage) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make(map[string]int, len(s.ByCategory))
	for k, v := range s.ByCategory {
		cats[k] = v
	}
	return Snapshot{
		Processed: s.Processed, New: s.New, Existing: s.Existing,
		Nodes: s.Nodes, Edges: s.Edges, Failed: s.Failed, Skipped: s.Skipped,
		ByCategory: cats,
	}
}

// Sink publishes stage statistics to an external monitoring backend.
type Sink interface {
	RecordStage(ctx context.Context, stageName string, dur time.Duration, snap Snapshot)
}

// MultiSink fans a single RecordStage call out to every sink it wraps,
// so a run can be wired with e.g. both a Prometheus and a CloudWatch sink.
type MultiSink []Sink

func (m MultiSink) RecordStage(ctx context.Context, stageName string, dur time.Duration, snap Snapshot) {
	for _, sink := range m {
		sink.RecordStage(ctx, stageName, dur, snap)
	}
}
