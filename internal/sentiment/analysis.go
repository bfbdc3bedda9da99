package sentiment

import (
	"math"
	"slices"
	"strings"
	"unicode"
)

// Emotion is one of the emotion buckets detected by [Analyze].
type Emotion string

const (
	EmotionJoy          Emotion = "joy"
	EmotionSadness      Emotion = "sadness"
	EmotionAnger        Emotion = "anger"
	EmotionFear         Emotion = "fear"
	EmotionSurprise     Emotion = "surprise"
	EmotionDisgust      Emotion = "disgust"
	EmotionTrust        Emotion = "trust"
	EmotionAnticipation Emotion = "anticipation"
	EmotionLove         Emotion = "love"
	EmotionConfusion    Emotion = "confusion"
	EmotionExcitement   Emotion = "excitement"
	EmotionWorry        Emotion = "worry"

	// EmotionNeutral is reported when no emotion keyword is present.
	EmotionNeutral Emotion = "neutral"
)

// RiskLevel categorises a crisis score.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Level is a coarse scale used for intensity (low and up) and stress (none and up).
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// SupportStrategy is the kind of support the analysis suggests.
type SupportStrategy string

const (
	SupportCrisisIntervention    SupportStrategy = "crisis_intervention"
	SupportEmotional             SupportStrategy = "emotional_support"
	SupportDeEscalation          SupportStrategy = "de_escalation"
	SupportPositiveReinforcement SupportStrategy = "positive_reinforcement"
	SupportStressManagement      SupportStrategy = "stress_management"
	SupportExploration           SupportStrategy = "exploration"
)

// TopicGeneral is reported when no topic keyword is present.
const TopicGeneral = "general"

// Crisis is the crisis assessment of a transcript.
type Crisis struct {
	// Score is in [0, 1], rounded to two decimals.
	Score float64 `json:"score"`

	// Indicators lists the crisis phrases found, in detection order.
	Indicators []string `json:"indicators,omitempty"`

	// NeedsAttention is set when Score exceeds 0.7.
	NeedsAttention bool `json:"needs_attention"`

	Risk RiskLevel `json:"risk"`
}

// Analysis is a richer reading of a transcript used to tailor replies. It
// never influences the [Result] it was derived from.
type Analysis struct {
	PrimaryEmotion Emotion `json:"primary_emotion"`

	// EmotionWord is the first keyword of the primary emotion in the text,
	// e.g. "anxious". Empty when no such keyword occurs, which happens for a
	// neutral reading or an emotion inferred from negation ("not happy").
	EmotionWord string `json:"emotion_word,omitempty"`

	// Emotions holds the non-zero bucket scores.
	Emotions map[Emotion]float64 `json:"emotions,omitempty"`

	// Intensity is low, moderate or high.
	Intensity Level `json:"intensity"`

	Crisis Crisis `json:"crisis"`

	// Topic is the dominant conversation topic, or [TopicGeneral].
	Topic string `json:"topic"`

	// Subject is the earliest keyword of Topic in the text, e.g. "presentation".
	Subject string `json:"subject,omitempty"`

	// Stress is none, moderate or high.
	Stress Level `json:"stress"`

	Strategy SupportStrategy `json:"strategy"`
}

// ---- keyword tables ----

// emotionOrder fixes bucket order so ties resolve deterministically.
var emotionOrder = []Emotion{
	EmotionJoy, EmotionSadness, EmotionAnger, EmotionFear, EmotionSurprise,
	EmotionDisgust, EmotionTrust, EmotionAnticipation, EmotionLove,
	EmotionConfusion, EmotionExcitement, EmotionWorry,
}

var emotionKeywords = map[Emotion][]string{
	EmotionJoy:          {"happy", "excited", "thrilled", "joy", "delighted", "wonderful", "amazing", "great", "fantastic", "awesome"},
	EmotionSadness:      {"sad", "depressed", "down", "hopeless", "lonely", "miserable", "unhappy", "grief", "sorrow", "melancholy"},
	EmotionAnger:        {"angry", "mad", "furious", "irritated", "annoyed", "frustrated", "rage", "hate", "livid", "enraged"},
	EmotionFear:         {"afraid", "scared", "terrified", "anxious", "worried", "nervous", "panic", "dread", "frightened", "alarmed"},
	EmotionSurprise:     {"surprised", "shocked", "amazed", "astonished", "stunned", "unexpected", "startled", "bewildered"},
	EmotionDisgust:      {"disgusted", "revolted", "appalled", "sickened", "repulsed", "horrified", "nauseated"},
	EmotionTrust:        {"trust", "confident", "secure", "safe", "reliable", "dependable", "assured", "certain"},
	EmotionAnticipation: {"excited", "eager", "hopeful", "optimistic", "looking forward", "anticipating", "expectant"},
	EmotionLove:         {"love", "adore", "cherish", "care", "affection", "fondness", "devotion"},
	EmotionConfusion:    {"confused", "puzzled", "perplexed", "baffled", "uncertain", "unsure", "doubtful"},
	EmotionExcitement:   {"excited", "thrilled", "pumped", "energized", "enthusiastic", "motivated"},
	EmotionWorry:        {"worried", "concerned", "anxious", "nervous", "uneasy", "troubled"},
}

var (
	intensifiers   = []string{"very", "really", "extremely", "incredibly", "absolutely", "totally", "completely", "so"}
	deintensifiers = []string{"slightly", "kind of", "sort of", "a little", "somewhat", "moderately", "reasonably"}
	emotionNegs    = []string{"not", "no", "never", "none", "neither", "nor"}

	crisisKeywords = []string{
		"suicide", "kill myself", "want to die", "end it all", "no reason to live",
		"everyone would be better off", "can't take it anymore", "give up",
		"nothing matters", "hopeless", "worthless", "useless", "no point",
		"better off dead", "don't want to live", "end my life",
	}
	extremeWords     = []string{"never", "always", "hate", "despise", "terrible", "horrible", "awful"}
	hopelessPhrases  = []string{"give up", "no point", "nothing matters", "end it all", "can't take it"}
	isolationPhrases = []string{"no one cares", "alone", "nobody understands", "no one gets it"}

	stressWords = []string{"stress", "stressed", "overwhelmed", "pressure", "anxious", "worried", "concerned"}
)

type topic struct {
	name     string
	keywords []string
}

var topics = []topic{
	{"work", []string{"work", "job", "career", "boss", "colleague", "presentation", "deadline", "meeting", "project"}},
	{"relationships", []string{"family", "friend", "partner", "relationship", "love", "breakup", "marriage", "dating"}},
	{"health", []string{"health", "sick", "pain", "doctor", "hospital", "medication", "symptoms", "treatment"}},
	{"education", []string{"school", "college", "exam", "study", "homework", "grade", "class", "assignment"}},
	{"personal", []string{"goal", "dream", "future", "past", "memory", "achievement", "hobby", "interest"}},
	{"financial", []string{"money", "bills", "debt", "salary", "expenses", "budget", "financial"}},
	{"social", []string{"party", "social", "group", "crowd", "people", "conversation", "interaction"}},
}

// ---- Analyze ----

// Analyze reads emotion, crisis risk, topic and stress from text. result is
// the sentiment already computed for the same text; it feeds the intensity
// estimate and is not modified.
func Analyze(text string, result Result) Analysis {
	d := newDoc(text)
	if len(d.words) == 0 {
		return Analysis{
			PrimaryEmotion: EmotionNeutral,
			Intensity:      LevelLow,
			Crisis:         Crisis{Risk: RiskNone},
			Topic:          TopicGeneral,
			Stress:         LevelNone,
			Strategy:       SupportExploration,
		}
	}

	emotions := detectEmotions(d)
	primary, word := primaryEmotion(d, emotions)
	crisis := assessCrisis(d)
	name, subject := detectTopic(d)
	stress := stressLevel(d)
	intensity := intensityLevel(text, result, emotions)

	a := Analysis{
		PrimaryEmotion: primary,
		EmotionWord:    word,
		Intensity:      intensity,
		Crisis:         crisis,
		Topic:          name,
		Subject:        subject,
		Stress:         stress,
	}
	for _, e := range emotionOrder {
		if s := emotions[e]; s > 0 {
			if a.Emotions == nil {
				a.Emotions = make(map[Emotion]float64)
			}
			a.Emotions[e] = s
		}
	}
	a.Strategy = supportStrategy(a)
	return a
}

// doc is text normalised for phrase matching: lowercase words separated by
// single spaces, padded so every phrase match is on word boundaries.
type doc struct {
	words  []string
	padded string
}

func newDoc(text string) doc {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for i, w := range words {
		words[i] = strings.Trim(w, "'")
	}
	return doc{words: words, padded: " " + strings.Join(words, " ") + " "}
}

func (d doc) has(phrase string) bool {
	return strings.Contains(d.padded, " "+phrase+" ")
}

// index returns the byte offset of phrase in the padded text, or -1.
func (d doc) index(phrase string) int {
	return strings.Index(d.padded, " "+phrase+" ")
}

func detectEmotions(d doc) map[Emotion]float64 {
	scores := make(map[Emotion]float64, len(emotionOrder))
	for _, e := range emotionOrder {
		for _, kw := range emotionKeywords[e] {
			if d.has(kw) {
				scores[e]++
			}
		}
	}

	for i := 0; i+1 < len(d.words); i++ {
		w, next := d.words[i], d.words[i+1]
		switch {
		case slices.Contains(intensifiers, w):
			for _, e := range emotionsOf(next) {
				scores[e] += 0.5
			}
		case slices.Contains(deintensifiers, w) || (i > 0 && slices.Contains(deintensifiers, d.words[i-1]+" "+w)):
			for _, e := range emotionsOf(next) {
				scores[e] = max(0, scores[e]-0.3)
			}
		case slices.Contains(emotionNegs, w) || strings.HasSuffix(w, "n't"):
			for _, e := range emotionsOf(next) {
				negateEmotion(scores, e)
			}
		}
	}
	return scores
}

// negateEmotion removes one unit of a negated emotion and credits its
// opposite where one is defined.
func negateEmotion(scores map[Emotion]float64, e Emotion) {
	switch e {
	case EmotionJoy, EmotionTrust, EmotionAnticipation, EmotionFear, EmotionSadness:
		scores[e] = max(0, scores[e]-1)
	default:
		return
	}
	switch e {
	case EmotionJoy:
		scores[EmotionSadness] += 0.5
	case EmotionTrust:
		scores[EmotionFear] += 0.5
	case EmotionFear:
		scores[EmotionTrust] += 0.5
	case EmotionSadness:
		scores[EmotionJoy] += 0.5
	}
}

func emotionsOf(word string) []Emotion {
	var out []Emotion
	for _, e := range emotionOrder {
		if slices.Contains(emotionKeywords[e], word) {
			out = append(out, e)
		}
	}
	return out
}

// primaryEmotion returns the highest-scoring emotion (first in bucket order
// on ties) and its earliest keyword in the text.
func primaryEmotion(d doc, scores map[Emotion]float64) (Emotion, string) {
	best, bestScore := EmotionNeutral, 0.0
	for _, e := range emotionOrder {
		if s := scores[e]; s > bestScore {
			best, bestScore = e, s
		}
	}
	if best == EmotionNeutral {
		return best, ""
	}
	return best, earliest(d, emotionKeywords[best])
}

func assessCrisis(d doc) Crisis {
	var (
		score      float64
		indicators []string
	)
	for _, kw := range crisisKeywords {
		if d.has(kw) {
			score += 0.3
			indicators = append(indicators, kw)
		}
	}
	for _, w := range extremeWords {
		if d.has(w) {
			score += 0.1
		}
	}
	for _, p := range hopelessPhrases {
		if d.has(p) {
			score += 0.4
		}
	}
	for _, p := range isolationPhrases {
		if d.has(p) {
			score += 0.2
		}
	}
	score = math.Round(min(score, 1)*100) / 100

	c := Crisis{Score: score, Indicators: indicators, NeedsAttention: score > 0.7}
	switch {
	case score > 0.8:
		c.Risk = RiskCritical
	case score > 0.6:
		c.Risk = RiskHigh
	case score > 0.4:
		c.Risk = RiskModerate
	case score > 0.2:
		c.Risk = RiskLow
	default:
		c.Risk = RiskNone
	}
	return c
}

// detectTopic returns the topic with the most distinct keywords present
// (first in table order on ties) and its earliest keyword in the text.
func detectTopic(d doc) (string, string) {
	best, bestScore := -1, 0
	for i, t := range topics {
		n := 0
		for _, kw := range t.keywords {
			if d.has(kw) {
				n++
			}
		}
		if n > bestScore {
			best, bestScore = i, n
		}
	}
	if best < 0 {
		return TopicGeneral, ""
	}
	return topics[best].name, earliest(d, topics[best].keywords)
}

func stressLevel(d doc) Level {
	n := 0
	for _, w := range stressWords {
		if d.has(w) {
			n++
		}
	}
	switch {
	case n > 2:
		return LevelHigh
	case n > 0:
		return LevelModerate
	default:
		return LevelNone
	}
}

// intensityLevel averages polarity strength, the strongest emotion bucket and
// the share of capital letters when shouting dominates the text.
func intensityLevel(text string, result Result, emotions map[Emotion]float64) Level {
	var maxEmotion float64
	for _, s := range emotions {
		maxEmotion = max(maxEmotion, s)
	}

	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	var caps float64
	if letters > 0 {
		if ratio := float64(upper) / float64(letters); ratio > 0.3 {
			caps = ratio
		}
	}

	combined := (math.Abs(result.Compound) + min(maxEmotion/3, 1) + caps) / 3
	switch {
	case combined > 0.7:
		return LevelHigh
	case combined > 0.4:
		return LevelModerate
	default:
		return LevelLow
	}
}

func supportStrategy(a Analysis) SupportStrategy {
	if a.Crisis.NeedsAttention {
		return SupportCrisisIntervention
	}
	switch a.PrimaryEmotion {
	case EmotionSadness, EmotionFear:
		if a.Intensity == LevelHigh {
			return SupportEmotional
		}
	case EmotionAnger, EmotionDisgust:
		if a.Intensity == LevelHigh {
			return SupportDeEscalation
		}
	case EmotionJoy, EmotionTrust, EmotionExcitement:
		return SupportPositiveReinforcement
	}
	if a.Stress == LevelHigh {
		return SupportStressManagement
	}
	return SupportExploration
}

// ---- helpers ----

// earliest returns the keyword that occurs first in the text.
func earliest(d doc, keywords []string) string {
	best, at := "", -1
	for _, kw := range keywords {
		if i := d.index(kw); i >= 0 && (at < 0 || i < at) {
			best, at = kw, i
		}
	}
	return best
}
