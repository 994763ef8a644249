package summarization

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/graphstore"
)

type fakeLLM struct {
	summary string
	err     error
}

func (f fakeLLM) Summarize(ctx context.Context, name, joined string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeStore struct {
	candidates  []graphstore.SummarizationCandidate
	summaries   map[string]string
	assignedIDs map[string]string
}

func (f *fakeStore) UpsertBaseProvenance(ctx context.Context, movieID, reviewerID, chunkID, chunkText string) error {
	return nil
}
func (f *fakeStore) UpsertEntityWithAccumulatedDescription(ctx context.Context, label, name string, newDescriptions []string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeStore) UpsertMentionsEdge(ctx context.Context, chunkID, entityName, entityLabel string) error {
	return nil
}
func (f *fakeStore) UpsertRelationshipSingle(ctx context.Context, nameA, labelA, nameB, labelB string, newDescriptions []string, strength int) (bool, error) {
	return false, nil
}
func (f *fakeStore) ReadSummarizationCandidates(ctx context.Context) ([]graphstore.SummarizationCandidate, error) {
	return f.candidates, nil
}
func (f *fakeStore) WriteSummary(ctx context.Context, c graphstore.SummarizationCandidate, summary string) error {
	if f.summaries == nil {
		f.summaries = map[string]string{}
	}
	f.summaries[c.Name] = summary
	return nil
}
func (f *fakeStore) AssignCanonicalID(ctx context.Context, c graphstore.SummarizationCandidate, canonicalID string) error {
	if f.assignedIDs == nil {
		f.assignedIDs = map[string]string{}
	}
	f.assignedIDs[c.Name] = canonicalID
	return nil
}
func (f *fakeStore) ListChunks(ctx context.Context) ([]graphstore.ChunkRow, error) { return nil, nil }
func (f *fakeStore) ListSummarizedEntities(ctx context.Context) ([]graphstore.EntityRow, error) {
	return nil, nil
}
func (f *fakeStore) ClearAll(ctx context.Context) error { return nil }
func (f *fakeStore) Stats(ctx context.Context) (graphstore.Stats, error) {
	return graphstore.Stats{}, nil
}

func TestRunWritesSummaryAndAssignsCanonicalID(t *testing.T) {
	store := &fakeStore{candidates: []graphstore.SummarizationCandidate{
		{Label: "ACTOR", Name: "Tom Hardy", Descriptions: []string{"played Eames", "supporting role"}},
	}}
	stage := New(store, fakeLLM{summary: "A supporting actor."}, func(label, name string) string {
		return "canon-" + name
	}, zap.NewNop())

	if err := stage.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.summaries["Tom Hardy"] != "A supporting actor." {
		t.Fatalf("got %q", store.summaries["Tom Hardy"])
	}
	if store.assignedIDs["Tom Hardy"] != "canon-Tom Hardy" {
		t.Fatalf("got %q", store.assignedIDs["Tom Hardy"])
	}
	snap := stage.Stats.Snapshot()
	if snap.Processed != 1 || snap.Failed != 0 {
		t.Fatalf("got %+v", snap)
	}
}

func TestRunSkipsCanonicalIDAssignmentWhenAlreadySet(t *testing.T) {
	store := &fakeStore{candidates: []graphstore.SummarizationCandidate{
		{Label: "ACTOR", Name: "Tom Hardy", Descriptions: []string{"played Eames"}, CanonicalID: "already-set"},
	}}
	stage := New(store, fakeLLM{summary: "ok"}, func(label, name string) string {
		t.Fatal("NewID should not be called when CanonicalID is already set")
		return ""
	}, zap.NewNop())

	if err := stage.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, assigned := store.assignedIDs["Tom Hardy"]; assigned {
		t.Fatal("AssignCanonicalID should not have been called")
	}
}

func TestRunCountsLLMFailureWithoutAborting(t *testing.T) {
	store := &fakeStore{candidates: []graphstore.SummarizationCandidate{
		{Label: "ACTOR", Name: "Fails", Descriptions: []string{"x"}},
		{Label: "ACTOR", Name: "Succeeds", Descriptions: []string{"y"}},
	}}
	calls := 0
	llm := countingLLM{fail: "Fails", calls: &calls}
	stage := New(store, llm, func(label, name string) string { return "id" }, zap.NewNop())

	if err := stage.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := stage.Stats.Snapshot()
	if snap.Failed != 1 || snap.Processed != 2 {
		t.Fatalf("got %+v", snap)
	}
}

type countingLLM struct {
	fail  string
	calls *int
}

func (c countingLLM) Summarize(ctx context.Context, name, joined string) (string, error) {
	*c.calls++
	if name == c.fail {
		return "", errors.New("llm unavailable")
	}
	return "ok", nil
}
