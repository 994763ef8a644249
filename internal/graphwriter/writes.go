package graphwriter

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/artifact"
	"github.com/naeri-labs/filmgraph/internal/stats"
)

// writeNodes performs phase 1 for one chunk: base provenance, then every
// extracted entity with description accumulation and a MENTIONS edge.
// Before writing, every entity name is substituted for its canonical name
// via the chunk's resolution map; names missing from the map fall
// through as their surface names.
func (w *Writer) writeNodes(ctx context.Context, c *artifact.Chunk) error {
	if err := w.Store.UpsertBaseProvenance(ctx, c.MovieID, c.Reviewer, c.ChunkID, c.UserQuery); err != nil {
		return err
	}

	for _, e := range c.Entities {
		name := c.EntityResolution.Resolve(e.Name)
		label := e.Type

		release, err := w.lockResource(ctx, label, name)
		if err != nil {
			return err
		}

		var descriptions []string
		if e.Description != "" {
			descriptions = []string{e.Description}
		}

		_, wasExisting, err := w.Store.UpsertEntityWithAccumulatedDescription(ctx, label, name, descriptions)
		if err == nil {
			w.recordClaim(ctx, label, name)
		}
		release(ctx)
		if err != nil {
			return err
		}
		w.Stats.Record(stats.Outcome{Existing: wasExisting})

		if err := w.Store.UpsertMentionsEdge(ctx, c.ChunkID, name, label); err != nil {
			return err
		}
	}
	return nil
}

// writeEdges performs phase 2 for one chunk: every extracted relationship
// is upserted as the single canonical edge for its (source, target) pair,
// with both endpoints substituted through the resolution map.
func (w *Writer) writeEdges(ctx context.Context, c *artifact.Chunk) error {
	for _, rel := range c.Relationships {
		nameA := c.EntityResolution.Resolve(rel.SourceName)
		nameB := c.EntityResolution.Resolve(rel.TargetName)

		release, err := w.lockResource(ctx, nameA, nameB)
		if err != nil {
			return err
		}

		var descriptions []string
		if rel.Description != "" {
			descriptions = []string{rel.Description}
		}

		wasExisting, err := w.Store.UpsertRelationshipSingle(
			ctx, nameA, rel.SourceType, nameB, rel.TargetType, descriptions, coerceStrength(rel.Strength))
		release(ctx)
		if err != nil {
			return err
		}
		w.Stats.Record(stats.Outcome{Existing: wasExisting, IsEdge: true})
	}
	return nil
}

// lockResource acquires the pair lock guarding the read-then-write
// accumulation for (a, b) — an entity's (label, name) in phase 1, or an
// edge's (nameA, nameB) in phase 2 — when a PairLock is configured. The
// returned release func is always safe to call, whether or not a lock
// was actually taken.
func (w *Writer) lockResource(ctx context.Context, a, b string) (func(context.Context), error) {
	if w.PairLock == nil {
		return func(context.Context) {}, nil
	}
	lock, err := w.PairLock.Acquire(ctx, a, b, w.ownerID, w.LockTTL)
	if err != nil {
		return func(context.Context) {}, err
	}
	return func(releaseCtx context.Context) {
		if err := lock.Release(releaseCtx); err != nil {
			w.Logger.Warn("graphwriter: lock release failed",
				zap.String("a", a), zap.String("b", b), zap.Error(err))
		}
	}, nil
}

// recordClaim asks the claim ledger whether this writer was the first to
// create (label, name), purely for diagnostics: the store's own upsert
// already handles create-or-accumulate atomically under the resource
// lock, so nothing downstream branches on the result.
func (w *Writer) recordClaim(ctx context.Context, label, name string) {
	if w.ClaimLedger == nil {
		return
	}
	won, err := w.ClaimLedger.Claim(ctx, label, name, w.ownerID)
	if err != nil {
		w.Logger.Warn("graphwriter: claim ledger write failed",
			zap.String("label", label), zap.String("name", name), zap.Error(err))
		return
	}
	if won {
		w.Logger.Debug("graphwriter: claimed first creation",
			zap.String("label", label), zap.String("name", name))
	}
}

// coerceStrength normalizes the extraction stage's loosely-typed strength
// field (int, float64, or a raw string that failed numeric parsing) to
// the integer the graph store expects. An unparseable value defaults to
// 1, the weakest non-zero strength, rather than discarding the edge.
func coerceStrength(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int(f)
		}
		return 1
	default:
		return 1
	}
}
