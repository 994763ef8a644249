package analyzer

import "testing"

func TestOverlapScore(t *testing.T) {
	a := Keywords{AllContentWords: []string{"dream", "extraction", "cobb"}}
	b := Keywords{AllContentWords: []string{"dream", "inception", "cobb"}}

	got := OverlapScore(a, b)
	want := 2.0 / 4.0 // intersection {dream, cobb} / union of 4 distinct words
	if got != want {
		t.Fatalf("OverlapScore() = %v, want %v", got, want)
	}
}

func TestOverlapScoreEmpty(t *testing.T) {
	if OverlapScore(Keywords{}, Keywords{AllContentWords: []string{"x"}}) != 0 {
		t.Fatal("expected zero overlap when one side is empty")
	}
}

func TestRouterPicksLatinForASCII(t *testing.T) {
	r := Router{Latin: stubAnalyzer{tag: "latin"}, CJK: stubAnalyzer{tag: "cjk"}}
	got := r.Extract("Leonardo DiCaprio")
	if len(got.Nouns) != 1 || got.Nouns[0] != "latin" {
		t.Fatalf("expected latin analyzer to handle ASCII text, got %+v", got)
	}
}

func TestRouterPicksCJKForNonASCII(t *testing.T) {
	r := Router{Latin: stubAnalyzer{tag: "latin"}, CJK: stubAnalyzer{tag: "cjk"}}
	got := r.Extract("디카프리오")
	if len(got.Nouns) != 1 || got.Nouns[0] != "cjk" {
		t.Fatalf("expected cjk analyzer to handle non-ASCII text, got %+v", got)
	}
}

type stubAnalyzer struct{ tag string }

func (s stubAnalyzer) Extract(string) Keywords {
	return Keywords{Nouns: []string{s.tag}}
}
