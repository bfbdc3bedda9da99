// Package sentiment maps transcript text to a sentiment label and a
// continuous polarity score.
//
// Scoring is rule-based: each word found in a valence lexicon contributes a
// polarity in [-4, 4], adjusted for preceding boosters ("very", "kind of"),
// negation within three tokens, ALL-CAPS emphasis, a contrastive "but" and
// trailing '!' or '?' runs. The sum s is normalised to
//
//	compound = s / sqrt(s² + 4)
//
// and rounded to four decimals. The label is derived from compound alone via
// [LabelFor], so label and score can never disagree:
//
//	compound < -0.25  ⇒ negative
//	compound >  0.25  ⇒ positive
//	otherwise         ⇒ neutral (both boundaries are neutral)
//
// A [Classifier] is read-only after construction; Classify is a pure function
// of its input and safe for concurrent use.
package sentiment

import (
	"math"
	"strings"
	"unicode"

	"github.com/MrWong99/solace/internal/sentiment/phonetic"
)

// Label is the categorical sentiment of a transcript.
type Label string

const (
	Negative Label = "negative"
	Neutral  Label = "neutral"
	Positive Label = "positive"
)

// Label thresholds on the compound score. Values strictly beyond a threshold
// take its label; the thresholds themselves are neutral.
const (
	NegativeThreshold = -0.25
	PositiveThreshold = 0.25
)

// LabelFor returns the label for a compound score.
func LabelFor(compound float64) Label {
	switch {
	case compound < NegativeThreshold:
		return Negative
	case compound > PositiveThreshold:
		return Positive
	default:
		return Neutral
	}
}

// Result is the sentiment of one transcript.
type Result struct {
	Label Label `json:"label"`

	// Compound is the normalised polarity in [-1, 1].
	Compound float64 `json:"compound"`

	// Positive, Negative and Neutral are the proportions of the text that
	// fall in each category. They sum to 1.
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// NeutralResult is the result for empty or non-lexical text.
func NeutralResult() Result {
	return Result{Label: Neutral, Neutral: 1}
}

// Scoring constants.
const (
	boostIncr       = 0.293
	boostDecr       = -0.293
	capsIncr        = 0.733
	negationScalar  = -0.74
	negationWindow  = 3
	exclamationIncr = 0.292
	maxExclamations = 4
	questionIncr    = 0.18
	questionMax     = 0.96
	normAlpha       = 4.0
	butBefore       = 0.5
	butAfter        = 1.5
)

// Fuzzy lookup is restricted to longer tokens and strict similarity so that
// ordinary words ("lived", "made") are not pulled onto lexicon entries.
const (
	phoneticMinLen    = 5
	phoneticThreshold = 0.90
	fuzzyThreshold    = 0.93
)

// Option is a functional option for configuring a Classifier.
type Option func(*Classifier)

// WithPhoneticMatching enables resolving unknown tokens to lexicon words by
// sound and spelling similarity, recovering valence from misrecognised
// speech ("anxous" → "anxious").
func WithPhoneticMatching(enabled bool) Option {
	return func(c *Classifier) {
		c.phonetic = enabled
	}
}

// Classifier scores transcripts. The zero value is not usable; construct with
// [New].
type Classifier struct {
	phonetic bool
	index    *phonetic.Index
}

// New returns a Classifier configured with opts.
func New(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, o := range opts {
		o(c)
	}
	if c.phonetic {
		c.index = phonetic.NewIndex(Vocabulary(),
			phonetic.WithPhoneticThreshold(phoneticThreshold),
			phonetic.WithFuzzyThreshold(fuzzyThreshold),
		)
	}
	return c
}

// PhoneticMatching reports whether fuzzy lexicon lookup is enabled.
func (c *Classifier) PhoneticMatching() bool { return c.index != nil }

// Classify returns the sentiment of text. It never fails: empty or
// non-lexical text yields [NeutralResult].
func (c *Classifier) Classify(text string) Result {
	toks := tokenize(text)
	if len(toks) == 0 {
		return NeutralResult()
	}

	capDiff := capsDifferential(toks)
	scores := make([]float64, len(toks))
	for i := range toks {
		scores[i] = c.scoreAt(toks, i, capDiff)
	}
	applyBut(toks, scores)

	var sum float64
	for _, s := range scores {
		sum += s
	}
	punct := punctuationEmphasis(text)
	switch {
	case sum > 0:
		sum += punct
	case sum < 0:
		sum -= punct
	}

	compound := round(normalize(sum), 4)
	pos, neg, neu := proportions(scores, punct)
	return Result{
		Label:    LabelFor(compound),
		Compound: compound,
		Positive: pos,
		Negative: neg,
		Neutral:  neu,
	}
}

// ---- scoring ----

type token struct {
	lower string
	caps  bool
}

func tokenize(text string) []token {
	text = strings.ReplaceAll(text, "’", "'")
	fields := strings.Fields(text)
	toks := make([]token, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" {
			continue
		}
		toks = append(toks, token{lower: strings.ToLower(w), caps: isAllCaps(w)})
	}
	return toks
}

func isAllCaps(w string) bool {
	letters := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	return letters
}

// capsDifferential reports whether some but not all tokens are upper case.
// Emphasis only counts when it stands out from the surrounding text.
func capsDifferential(toks []token) bool {
	n := 0
	for _, t := range toks {
		if t.caps {
			n++
		}
	}
	return n > 0 && n < len(toks)
}

func (c *Classifier) scoreAt(toks []token, i int, capDiff bool) float64 {
	t := toks[i]
	if _, ok := boosters[t.lower]; ok {
		return 0
	}
	v, ok := c.lookup(t.lower)
	if !ok {
		return 0
	}
	if capDiff && t.caps {
		v += math.Copysign(capsIncr, v)
	}

	for j := 1; j <= negationWindow && i-j >= 0; j++ {
		b := boostAt(toks, i-j)
		if b == 0 {
			continue
		}
		if v < 0 {
			b = -b
		}
		switch j {
		case 2:
			b *= 0.95
		case 3:
			b *= 0.9
		}
		v += b
	}

	for j := 1; j <= negationWindow && i-j >= 0; j++ {
		if isNegation(toks[i-j].lower) {
			v *= negationScalar
			break
		}
	}
	return v
}

func (c *Classifier) lookup(w string) (float64, bool) {
	if v, ok := valence[w]; ok {
		return v, true
	}
	if c.index == nil || len(w) < phoneticMinLen || isNegation(w) {
		return 0, false
	}
	resolved, _, ok := c.index.Match(w)
	if !ok {
		return 0, false
	}
	return valence[resolved], true
}

// boostAt returns the booster scalar of toks[k], recognising the two-word
// dampeners "kind of", "sort of", "a little" and "a bit" by their last word.
func boostAt(toks []token, k int) float64 {
	w := toks[k].lower
	if b, ok := boosters[w]; ok {
		return b
	}
	if k == 0 {
		return 0
	}
	prev := toks[k-1].lower
	switch {
	case w == "of" && (prev == "kind" || prev == "sort"):
		return boostDecr
	case (w == "little" || w == "bit") && prev == "a":
		return boostDecr
	}
	return 0
}

func isNegation(w string) bool {
	if _, ok := negations[w]; ok {
		return true
	}
	return strings.HasSuffix(w, "n't")
}

// applyBut dampens sentiment before the first "but" and amplifies it after.
func applyBut(toks []token, scores []float64) {
	at := -1
	for i, t := range toks {
		if t.lower == "but" {
			at = i
			break
		}
	}
	if at < 0 {
		return
	}
	for i := range scores {
		switch {
		case i < at:
			scores[i] *= butBefore
		case i > at:
			scores[i] *= butAfter
		}
	}
}

func punctuationEmphasis(text string) float64 {
	ep := float64(min(strings.Count(text, "!"), maxExclamations)) * exclamationIncr

	var qm float64
	if n := strings.Count(text, "?"); n > 1 {
		if n <= 3 {
			qm = float64(n) * questionIncr
		} else {
			qm = questionMax
		}
	}
	return ep + qm
}

func normalize(s float64) float64 {
	n := s / math.Sqrt(s*s+normAlpha)
	return max(-1, min(1, n))
}

// proportions splits the text into positive, negative and neutral shares.
// Each sentiment word counts its magnitude plus one; each other token counts
// one. Punctuation emphasis is credited to the dominant side.
func proportions(scores []float64, punct float64) (pos, neg, neu float64) {
	var posSum, negSum, neuCount float64
	for _, s := range scores {
		switch {
		case s > 0:
			posSum += s + 1
		case s < 0:
			negSum += s - 1
		default:
			neuCount++
		}
	}
	if posSum == 0 && negSum == 0 {
		return 0, 0, 1
	}
	if posSum > math.Abs(negSum) {
		posSum += punct
	} else if posSum < math.Abs(negSum) {
		negSum -= punct
	}

	total := posSum + math.Abs(negSum) + neuCount
	pos = round(posSum/total, 3)
	neg = round(math.Abs(negSum)/total, 3)
	neu = round(neuCount/total, 3)

	// Rounding residue goes to the largest share so the three sum to 1 and
	// none drops below zero.
	residue := 1 - pos - neg - neu
	switch {
	case pos >= neg && pos >= neu:
		pos = round(pos+residue, 3)
	case neg >= neu:
		neg = round(neg+residue, 3)
	default:
		neu = round(neu+residue, 3)
	}
	return pos, neg, neu
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
