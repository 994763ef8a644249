// Package graphwriter implements the Graph Writer (C6): the two-phase,
// concurrent writer that ingests chunks' entities and relationships into
// the graph store with idempotent upserts, canonicalization, and a
// retry/failure-queue discipline tolerant of optimistic-concurrency
// conflicts from concurrent writers.
package graphwriter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/apperr"
	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/config"
	"github.com/naeri-labs/filmgraph/internal/graphstore"
	"github.com/naeri-labs/filmgraph/internal/ledger"
	"github.com/naeri-labs/filmgraph/internal/stats"
)

// defaultLockTTL is used when the configured GraphWriterConfig carries no
// lock_ttl_seconds, so a Writer built by a zero-value Config (as in tests)
// still gets a sane value if a PairLock is attached later.
const defaultLockTTL = 30 * time.Second

// Writer drives the two-phase ingestion of a batch of chunk artifacts
// into a graphstore.Store. ClaimLedger and PairLock are optional: a nil
// value disables the corresponding coordination and the writer falls
// back to relying solely on the store's own upsert semantics, which is
// adequate for a single-process run but not for concurrent writers
// sharing one graph store.
type Writer struct {
	Store       graphstore.Store
	Stats       *stats.Stage
	Logger      *zap.Logger
	Config      config.GraphWriterConfig
	ClaimLedger *ledger.ClaimLedger
	PairLock    *ledger.PairLock
	LockTTL     time.Duration

	ownerID string
}

// New returns a Writer with the given dependencies. ClaimLedger and
// PairLock are left unset; callers that need cross-process coordination
// set them on the returned Writer before calling Run.
func New(store graphstore.Store, cfg config.GraphWriterConfig, logger *zap.Logger) *Writer {
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Writer{
		Store:   store,
		Stats:   stats.NewStage(),
		Logger:  logger,
		Config:  cfg,
		LockTTL: ttl,
		ownerID: uuid.NewString(),
	}
}

// Result summarizes one Run: chunks that still failed after every drain
// round, so callers can report or re-queue them.
type Result struct {
	Phase1Failures []*artifact.Chunk
	Phase2Failures []*artifact.Chunk
}

// Run ingests chunks in two strictly sequential phases: nodes (higher
// parallelism) then relationships (lower parallelism, after phase 1 has
// fully drained). Phase 2 never starts until every phase-1 task has
// either succeeded or exhausted its drain rounds, since edge upserts
// would otherwise race against missing nodes.
func (w *Writer) Run(ctx context.Context, chunks []*artifact.Chunk) Result {
	phase1Failures := w.runPhase(ctx, chunks, w.Config.Phase1Workers, w.writeNodes)
	phase2Failures := w.runPhase(ctx, chunks, w.Config.Phase2Workers, w.writeEdges)
	return Result{Phase1Failures: phase1Failures, Phase2Failures: phase2Failures}
}

// taskFunc performs one chunk's work for a phase and returns an error
// classified via apperr.
type taskFunc func(ctx context.Context, c *artifact.Chunk) error

// runPhase drives one phase to completion: workers pull chunks from a
// shared queue, retrying each up to MaxAttempts times with linear
// backoff on a Conflict error, else pushing the chunk to a failure
// queue. After the initial pass, failed chunks are reshuffled and
// retried for up to MaxDrainRounds additional rounds.
func (w *Writer) runPhase(ctx context.Context, chunks []*artifact.Chunk, workers int, task taskFunc) []*artifact.Chunk {
	pending := shuffledCopy(chunks)

	for round := 0; round <= w.Config.MaxDrainRounds && len(pending) > 0; round++ {
		failed := w.runPass(ctx, pending, workers, task)
		if len(failed) == 0 {
			return nil
		}
		if round == w.Config.MaxDrainRounds {
			return failed
		}
		pending = shuffledCopy(failed)
	}
	return nil
}

// runPass runs one pass of workers over items, each item retried up to
// MaxAttempts times within the pass, and returns the items that never
// succeeded.
func (w *Writer) runPass(ctx context.Context, items []*artifact.Chunk, workers int, task taskFunc) []*artifact.Chunk {
	queue := make(chan *artifact.Chunk, len(items))
	for _, c := range items {
		queue <- c
	}
	close(queue)

	var mu sync.Mutex
	var failed []*artifact.Chunk

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range queue {
				if err := w.attemptWithRetry(ctx, c, task); err != nil {
					mu.Lock()
					failed = append(failed, c)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return failed
}

// attemptWithRetry runs task against c up to MaxAttempts times. A
// Conflict error triggers linear backoff and another attempt; any other
// error, or exhausting attempts, returns the last error to the caller so
// the chunk can be pushed to the failure queue.
func (w *Writer) attemptWithRetry(ctx context.Context, c *artifact.Chunk, task taskFunc) error {
	var lastErr error
	for attempt := 1; attempt <= w.Config.MaxAttempts; attempt++ {
		err := task(ctx, c)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperr.Is(err, apperr.TypeConflict) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt, w.Config.BackoffUnit)):
		}
	}
	w.Logger.Warn("graphwriter: task failed, pushing to failure queue",
		zap.String("chunk_id", c.ChunkID), zap.Error(lastErr))
	return lastErr
}

func backoff(attempt int, unitSeconds float64) time.Duration {
	return time.Duration(float64(attempt) * unitSeconds * float64(time.Second))
}

func shuffledCopy(chunks []*artifact.Chunk) []*artifact.Chunk {
	out := make([]*artifact.Chunk, len(chunks))
	copy(out, chunks)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
