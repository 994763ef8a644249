package analyzer

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

var stopWordsEN = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"a": true, "an": true, "of": true, "in": true, "to": true, "for": true,
	"on": true, "at": true, "by": true, "with": true, "from": true, "as": true,
	"and": true, "or": true, "but": true, "it": true, "its": true,
}

// ProseAnalyzer extracts keywords from English (and other Latin-script)
// text using Penn Treebank part-of-speech tags.
type ProseAnalyzer struct{}

func (ProseAnalyzer) Extract(text string) Keywords {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return Keywords{}
	}

	var nouns, nounsVerbs, all []string
	seenNoun := map[string]bool{}
	seenVerb := map[string]bool{}
	seenContent := map[string]bool{}

	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if len(word) <= 2 || stopWordsEN[word] {
			continue
		}
		switch {
		case strings.HasPrefix(tok.Tag, "NN"):
			if !seenNoun[word] {
				nouns = append(nouns, word)
				nounsVerbs = append(nounsVerbs, word)
				all = append(all, word)
				seenNoun[word] = true
			}
		case strings.HasPrefix(tok.Tag, "VB"):
			if !seenVerb[word] {
				nounsVerbs = append(nounsVerbs, word)
				all = append(all, word)
				seenVerb[word] = true
			}
		case strings.HasPrefix(tok.Tag, "JJ"), strings.HasPrefix(tok.Tag, "RB"):
			if !seenContent[word] {
				all = append(all, word)
				seenContent[word] = true
			}
		}
	}

	return Keywords{Nouns: nouns, NounsAndVerbs: nounsVerbs, AllContentWords: all}
}
