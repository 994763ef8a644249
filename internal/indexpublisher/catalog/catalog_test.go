package catalog

import "testing"

func TestSynthesizeExpandsMovieDirectorCast(t *testing.T) {
	entries := []MovieEntry{
		{MovieTitle: "Inception", Director: "Christopher Nolan", Cast: []string{"Leonardo DiCaprio", "Tom Hardy"}},
	}
	seeds := Synthesize(entries)
	if len(seeds) != 4 {
		t.Fatalf("got %d seeds, want 4 (movie + director + 2 cast)", len(seeds))
	}
	types := map[string]int{}
	for _, s := range seeds {
		types[s.EntityType]++
	}
	if types["MOVIE"] != 1 || types["DIRECTOR"] != 1 || types["ACTOR"] != 2 {
		t.Fatalf("got %+v", types)
	}
}

func TestSynthesizeSkipsEmptyCastEntries(t *testing.T) {
	entries := []MovieEntry{{MovieTitle: "Untitled", Cast: []string{"", "Someone"}}}
	seeds := Synthesize(entries)
	count := 0
	for _, s := range seeds {
		if s.EntityType == "ACTOR" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("got %d actor seeds, want 1", count)
	}
}
