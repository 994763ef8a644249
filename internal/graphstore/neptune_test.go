package graphstore

import (
	"encoding/json"
	"testing"
)

func TestMergeDescriptionsDedupPreservesOrder(t *testing.T) {
	got := mergeDescriptions([]string{"played Eames"}, []string{"forger in dream team", "played Eames"})
	want := []string{"played Eames", "forger in dream team"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergeDescriptionsSkipsEmpty(t *testing.T) {
	got := mergeDescriptions(nil, []string{"", "a", ""})
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v", got)
	}
}

func TestValidLabel(t *testing.T) {
	cases := map[string]bool{
		"MOVIE":           true,
		"MOVIE_CHARACTER": true,
		"":                false,
		"movie":           false,
		"MOVIE; DROP":     false,
	}
	for label, want := range cases {
		if got := validLabel(label); got != want {
			t.Errorf("validLabel(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestDecodeExistingEntityNew(t *testing.T) {
	resp := &cypherResponse{}
	desc, existed, canon := decodeExistingEntity(resp)
	if desc != nil || existed || canon != "" {
		t.Fatalf("expected zero value for no rows, got %v %v %v", desc, existed, canon)
	}
}

func TestDecodeExistingEntityFound(t *testing.T) {
	descJSON, _ := json.Marshal([]string{"a", "b"})
	nameJSON, _ := json.Marshal(string(descJSON))
	canonJSON, _ := json.Marshal("tom-hardy-actor-ab12cd34")

	resp := &cypherResponse{Results: []map[string]json.RawMessage{
		{"description": nameJSON, "canonical_id": canonJSON},
	}}
	desc, existed, canon := decodeExistingEntity(resp)
	if !existed || canon != "tom-hardy-actor-ab12cd34" {
		t.Fatalf("got %v %v %v", desc, existed, canon)
	}
	if len(desc) != 2 || desc[0] != "a" || desc[1] != "b" {
		t.Fatalf("got descriptions %v", desc)
	}
}

func TestSortedLabelsIsStable(t *testing.T) {
	a, b := sortedLabels("MOVIE", "ACTOR")
	if a != "ACTOR" || b != "MOVIE" {
		t.Fatalf("got %s, %s", a, b)
	}
}
