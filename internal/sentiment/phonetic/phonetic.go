// Package phonetic resolves misrecognised words to entries of a fixed
// vocabulary using Double Metaphone phonetic encoding combined with
// Jaro-Winkler string similarity for ranked candidate selection.
//
// Speech-to-text engines regularly produce near-miss spellings of emotional
// vocabulary ("anxous", "depresed", "lonley"). The sentiment classifier uses an
// [Index] over its lexicon so such tokens still contribute their valence.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: the Double Metaphone codes of the input
//     are looked up in a code → words index built once at construction.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the word with the
//     highest Jaro-Winkler similarity is selected, provided its score reaches
//     the phonetic threshold (default 0.70). When no phonetic candidate
//     qualifies, a secondary pass tests pure Jaro-Winkler similarity against
//     the whole vocabulary using a higher fuzzy threshold (default 0.85).
//
// Ties are broken by vocabulary order, so results are deterministic.
package phonetic

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring an [Index].
type Option func(*Index)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(ix *Index) {
		ix.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the index falls back to pure string similarity.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(ix *Index) {
		ix.fuzzyThreshold = threshold
	}
}

// Index is a phonetic lookup structure over a vocabulary. It is read-only
// after construction and safe for concurrent use.
type Index struct {
	words             []string
	byCode            map[string][]int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewIndex builds an Index over vocabulary. Words are lowercased and
// deduplicated; the vocabulary is sorted so tie-breaking does not depend on
// the caller's ordering.
func NewIndex(vocabulary []string, opts ...Option) *Index {
	words := make([]string, 0, len(vocabulary))
	for _, w := range vocabulary {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	slices.Sort(words)
	words = slices.Compact(words)

	ix := &Index{
		words:             words,
		byCode:            make(map[string][]int, len(words)*2),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(ix)
	}
	for i, w := range words {
		for _, code := range codes(w) {
			ix.byCode[code] = append(ix.byCode[code], i)
		}
	}
	return ix
}

// Len returns the number of distinct words in the index.
func (ix *Index) Len() int { return len(ix.words) }

// Match returns the vocabulary word most similar to word. When matched is
// false, resolved is empty and confidence is 0. An exact (case-insensitive)
// vocabulary hit returns confidence 1.
func (ix *Index) Match(word string) (resolved string, confidence float64, matched bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" || len(ix.words) == 0 {
		return "", 0, false
	}
	if _, ok := slices.BinarySearch(ix.words, w); ok {
		return w, 1, true
	}

	best, bestScore := -1, 0.0
	for _, code := range codes(w) {
		for _, i := range ix.byCode[code] {
			s := matchr.JaroWinkler(w, ix.words[i], false)
			if s < ix.phoneticThreshold {
				continue
			}
			if s > bestScore || (s == bestScore && i < best) {
				best, bestScore = i, s
			}
		}
	}
	if best >= 0 {
		return ix.words[best], bestScore, true
	}

	for i, cand := range ix.words {
		if s := matchr.JaroWinkler(w, cand, false); s >= ix.fuzzyThreshold && s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 {
		return ix.words[best], bestScore, true
	}
	return "", 0, false
}

// codes returns the distinct non-empty Double Metaphone codes of w.
func codes(w string) []string {
	p, s := matchr.DoubleMetaphone(w)
	switch {
	case p == "" && s == "":
		return nil
	case s == "" || s == p:
		return []string{p}
	case p == "":
		return []string{s}
	default:
		return []string{p, s}
	}
}
