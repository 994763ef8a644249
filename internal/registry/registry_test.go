package registry

import (
	"reflect"
	"testing"
)

func TestMergeSynonymsDedupSortStrip(t *testing.T) {
	got := MergeSynonyms([]string{" 디카프리오 ", "Leo"}, []string{"레오나르도", "디카프리오", ""})
	want := []string{"Leo", "디카프리오", "레오나르도"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeSynonymsAssociative(t *testing.T) {
	a := []string{"a", "b"}
	b := []string{"b", "c"}
	c := []string{"c", "d"}

	left := MergeSynonyms(MergeSynonyms(a, b), c)
	right := MergeSynonyms(a, MergeSynonyms(b, c))

	if !reflect.DeepEqual(left, right) {
		t.Fatalf("merge not associative: %v != %v", left, right)
	}
}

func TestBestHitThresholdAndTieBreak(t *testing.T) {
	hits := []searchHit{
		{ID: "z-entity", Score: 5.0},
		{ID: "a-entity", Score: 5.0},
		{ID: "low-score", Score: 1.0},
	}
	best := bestHit(hits, MinMatchScore)
	if best == nil || best.ID != "a-entity" {
		t.Fatalf("expected stable tie-break on ascending id, got %+v", best)
	}
}

func TestBestHitBelowThreshold(t *testing.T) {
	hits := []searchHit{{ID: "x", Score: 1.0}}
	if bestHit(hits, MinMatchScore) != nil {
		t.Fatal("expected no hit below threshold")
	}
}
