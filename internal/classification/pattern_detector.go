// Package classification assigns dispute categories with deterministic rules.
package classification

import (
	"fmt"
	"regexp"
	"strings"
)

// KeywordSet is a named list of phrases.
type KeywordSet struct {
	Name    string
	Phrases []string
}

type compiledPhrase struct {
	re     *regexp.Regexp
	phrase string
}

// KeywordDetector finds phrases from named keyword sets in free text.
type KeywordDetector struct {
	sets map[string][]compiledPhrase
}

// NewKeywordDetector compiles every phrase into a case-insensitive word-boundary regex.
func NewKeywordDetector(sets []KeywordSet) (*KeywordDetector, error) {
	d := &KeywordDetector{sets: make(map[string][]compiledPhrase, len(sets))}

	for _, set := range sets {
		compiled := make([]compiledPhrase, 0, len(set.Phrases))
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			re, err := regexp.Compile(`(?i)\b` + phraseRegex(phrase) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("failed to compile phrase %q in set %s: %w", phrase, set.Name, err)
			}
			compiled = append(compiled, compiledPhrase{re: re, phrase: phrase})
		}
		d.sets[set.Name] = append(d.sets[set.Name], compiled...)
	}

	return d, nil
}

// Find returns the first phrase of the named set that occurs in text.
func (d *KeywordDetector) Find(set, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range d.sets[set] {
		if p.re.MatchString(text) {
			return p.phrase, true
		}
	}
	return "", false
}

// phraseRegex quotes a phrase and lets any run of whitespace separate its words.
// Apostrophes match both the straight and typographic forms.
func phraseRegex(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		q := regexp.QuoteMeta(w)
		words[i] = strings.ReplaceAll(q, "'", "['’]")
	}
	return strings.Join(words, `\s+`)
}
