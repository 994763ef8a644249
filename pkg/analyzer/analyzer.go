// Package analyzer extracts content-word keywords from entity names and
// synonym candidates and scores surface-name overlap between them. The
// registry's synonym_partial lookup does not call it; it uses an index-side
// wildcard query. The domain corpus mixes Korean/Japanese reviewer text
// with English titles and names, so Router dispatches to a kagome-based
// analyzer for CJK text and a prose-based analyzer for Latin text.
package analyzer

// Keywords holds the content words extracted from one piece of text,
// layered from most to least selective.
type Keywords struct {
	Nouns           []string
	NounsAndVerbs   []string
	AllContentWords []string
}

// Analyzer extracts keywords from a surface string.
type Analyzer interface {
	Extract(text string) Keywords
}

// isASCIIAlpha reports whether s is composed entirely of ASCII letters,
// the heuristic used to route text to the Latin-script analyzer.
func isASCIIAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' ' || r == '-' || r == '\'') {
			return false
		}
	}
	return len(s) > 0
}

// Router dispatches to CJK or Latin analyzers based on script detection,
// so callers needn't know which collaborator handled a given name.
type Router struct {
	CJK   Analyzer
	Latin Analyzer
}

// Extract routes text to the Latin analyzer when it looks like plain
// ASCII prose, and to the CJK analyzer otherwise.
func (r Router) Extract(text string) Keywords {
	if isASCIIAlpha(text) && r.Latin != nil {
		return r.Latin.Extract(text)
	}
	if r.CJK != nil {
		return r.CJK.Extract(text)
	}
	if r.Latin != nil {
		return r.Latin.Extract(text)
	}
	return Keywords{}
}

// OverlapScore returns the Jaccard overlap between two keyword sets'
// AllContentWords layer.
func OverlapScore(a, b Keywords) float64 {
	setA := toSet(a.AllContentWords)
	setB := toSet(b.AllContentWords)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
