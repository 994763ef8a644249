// Package catalog loads the domain's movie/cast/staff catalogs used by
// the one-shot synonym import flow to seed the search index before any
// text has been extracted.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MovieEntry is one film's catalog record: title, director, and cast,
// the minimal context needed to synthesize an initial summary per
// entity before any review text has been processed.
type MovieEntry struct {
	MovieTitle string   `json:"movie_title"`
	Director   string   `json:"director"`
	Cast       []string `json:"cast"`
	Reviewers  []string `json:"reviewers"`
}

// Loader reads the catalog of known movies for the synonym import flow.
type Loader interface {
	Load() ([]MovieEntry, error)
}

// JSONLoader reads every *.json file in Dir as a MovieEntry, matching
// the reference pipeline's movie_cast directory layout.
type JSONLoader struct {
	Dir string
}

// NewJSONLoader returns a Loader rooted at dir.
func NewJSONLoader(dir string) *JSONLoader {
	return &JSONLoader{Dir: dir}
}

func (l *JSONLoader) Load() ([]MovieEntry, error) {
	matches, err := filepath.Glob(filepath.Join(l.Dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("catalog: glob %s: %w", l.Dir, err)
	}
	entries := make([]MovieEntry, 0, len(matches))
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		var e MovieEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SeedEntity is one entity synthesized from a catalog entry, ready for
// the synonym import flow to embed and write.
type SeedEntity struct {
	Name       string
	EntityType string
	Summary    string
}

// Synthesize expands a MovieEntry into one seed entity per movie,
// director, and cast member, with a one-line synthesized summary
// standing in for the LLM-authored summary a later pass will overwrite.
func Synthesize(entries []MovieEntry) []SeedEntity {
	var seeds []SeedEntity
	for _, e := range entries {
		if e.MovieTitle != "" {
			seeds = append(seeds, SeedEntity{
				Name: e.MovieTitle, EntityType: "MOVIE",
				Summary: fmt.Sprintf("%s, directed by %s, starring %s.", e.MovieTitle, e.Director, strings.Join(e.Cast, ", ")),
			})
		}
		if e.Director != "" {
			seeds = append(seeds, SeedEntity{
				Name: e.Director, EntityType: "DIRECTOR",
				Summary: fmt.Sprintf("%s directed %s.", e.Director, e.MovieTitle),
			})
		}
		for _, actor := range e.Cast {
			if actor == "" {
				continue
			}
			seeds = append(seeds, SeedEntity{
				Name: actor, EntityType: "ACTOR",
				Summary: fmt.Sprintf("%s appeared in %s.", actor, e.MovieTitle),
			})
		}
	}
	return seeds
}
