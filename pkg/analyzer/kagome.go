package analyzer

import (
	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// stopVerbsJA drops light verbs and auxiliary forms that carry no
// entity-distinguishing signal.
var stopVerbsJA = map[string]bool{
	"ある": true, "いる": true, "する": true, "なる": true,
	"できる": true, "思う": true, "考える": true,
	"れる": true, "られる": true, "せる": true, "させる": true,
}

// KagomeAnalyzer extracts keywords from Japanese (and, tolerably, Korean
// romanized or mixed-script) text using IPADIC part-of-speech tags.
type KagomeAnalyzer struct {
	tok *tokenizer.Tokenizer
}

// NewKagomeAnalyzer builds a tokenizer over the bundled IPA dictionary.
func NewKagomeAnalyzer() (*KagomeAnalyzer, error) {
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &KagomeAnalyzer{tok: tok}, nil
}

func (k *KagomeAnalyzer) Extract(text string) Keywords {
	tokens := k.tok.Tokenize(text)
	var nouns, nounsVerbs, all []string
	seenNoun := map[string]bool{}
	seenVerb := map[string]bool{}
	seenAdj := map[string]bool{}

	for _, t := range tokens {
		pos := t.POS()
		if len(pos) == 0 {
			continue
		}
		base, _ := t.BaseForm()
		switch {
		case pos[0] == "名詞" && len(pos) > 1 && (pos[1] == "固有名詞" || pos[1] == "一般" || pos[1] == "サ変接続"):
			if !seenNoun[t.Surface] && len([]rune(t.Surface)) > 1 {
				nouns = append(nouns, t.Surface)
				nounsVerbs = append(nounsVerbs, t.Surface)
				all = append(all, t.Surface)
				seenNoun[t.Surface] = true
			}
		case pos[0] == "動詞":
			if !stopVerbsJA[base] && !seenVerb[base] && len([]rune(base)) > 1 {
				nounsVerbs = append(nounsVerbs, base)
				all = append(all, base)
				seenVerb[base] = true
			}
		case pos[0] == "形容詞":
			if !seenAdj[base] && len([]rune(base)) > 1 {
				all = append(all, base)
				seenAdj[base] = true
			}
		}
	}

	return Keywords{Nouns: nouns, NounsAndVerbs: nounsVerbs, AllContentWords: all}
}
