package respond

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/MrWong99/solace/internal/sentiment"
)

// clarifyReply is the fixed reply for a turn whose audio yielded no words.
const clarifyReply = "I couldn't quite hear that, could you try again?"

// crisisReply is never generated by a model.
const crisisReply = "I'm really sorry you're going through this, and I'm glad you told me. " +
	"You don't have to carry it alone. If you are in danger or thinking about hurting yourself, " +
	"please reach out right now to your local emergency number or a crisis line " +
	"(in the US you can call or text 988). Is there someone you trust who could be with you today?"

var (
	empathizeQuestions = []string{
		"Would you like to tell me more about what's on your mind?",
		"What part of it feels the hardest right now?",
		"What do you think is making it feel this way?",
	}
	encourageQuestions = []string{
		"What's been the best part of it so far?",
		"I'd love to hear more. What made it go so well?",
		"How are you planning to build on that?",
	}
	inviteQuestions = []string{
		"Could you tell me a little more about how you're feeling?",
		"How has that been sitting with you?",
		"What's been on your mind about it lately?",
	}
)

const stressTip = "When everything piles up, a few slow, deep breaths can make the next step feel a bit lighter."

const deEscalateNote = "It's okay to feel this strongly."

// negativeEmotions and positiveEmotions limit which buckets a reply may name,
// so a negative reply never tells the user they sound happy.
var (
	negativeEmotions = map[sentiment.Emotion]bool{
		sentiment.EmotionSadness:   true,
		sentiment.EmotionAnger:     true,
		sentiment.EmotionFear:      true,
		sentiment.EmotionDisgust:   true,
		sentiment.EmotionConfusion: true,
		sentiment.EmotionWorry:     true,
		sentiment.EmotionSurprise:  true,
	}
	positiveEmotions = map[sentiment.Emotion]bool{
		sentiment.EmotionJoy:          true,
		sentiment.EmotionTrust:        true,
		sentiment.EmotionAnticipation: true,
		sentiment.EmotionLove:         true,
		sentiment.EmotionExcitement:   true,
		sentiment.EmotionSurprise:     true,
	}
)

// emotionAdjectives is used when the keyword itself does not read as
// "feeling <word>".
var emotionAdjectives = map[sentiment.Emotion]string{
	sentiment.EmotionJoy:          "happy",
	sentiment.EmotionSadness:      "sad",
	sentiment.EmotionAnger:        "frustrated",
	sentiment.EmotionFear:         "scared",
	sentiment.EmotionSurprise:     "surprised",
	sentiment.EmotionDisgust:      "upset",
	sentiment.EmotionTrust:        "secure",
	sentiment.EmotionAnticipation: "hopeful",
	sentiment.EmotionLove:         "loved",
	sentiment.EmotionConfusion:    "confused",
	sentiment.EmotionExcitement:   "excited",
	sentiment.EmotionWorry:        "worried",
}

var nounEmotionWords = map[string]bool{
	"joy": true, "grief": true, "sorrow": true, "melancholy": true, "rage": true,
	"hate": true, "panic": true, "dread": true, "trust": true, "love": true,
	"adore": true, "cherish": true, "care": true, "affection": true,
	"fondness": true, "devotion": true, "unexpected": true,
	"looking forward": true, "anticipating": true,
}

// subjectPhrases rewrites topic keywords that do not read as "your <word>".
// An empty value drops the subject.
var subjectPhrases = map[string]string{
	"sick":        "health",
	"symptoms":    "health",
	"financial":   "finances",
	"social":      "social life",
	"dating":      "dating life",
	"study":       "studies",
	"love":        "",
	"people":      "",
	"crowd":       "",
	"interaction": "",
	"memory":      "memories",
}

// feeling returns the emotion to name in a reply, or "" when the primary
// emotion is not in allowed.
func feeling(a sentiment.Analysis, allowed map[sentiment.Emotion]bool) string {
	if !allowed[a.PrimaryEmotion] {
		return ""
	}
	if w := a.EmotionWord; w != "" && !nounEmotionWords[w] {
		return w
	}
	return emotionAdjectives[a.PrimaryEmotion]
}

// subject returns "your <subject>" for the analysis, or "".
func subject(a sentiment.Analysis) string {
	s := a.Subject
	if s == "" {
		return ""
	}
	if p, ok := subjectPhrases[s]; ok {
		s = p
	}
	if s == "" {
		return ""
	}
	return "your " + s
}

// pick chooses one of options deterministically from the transcript so the
// same utterance always gets the same wording.
func pick(transcript string, options []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(transcript))))
	return options[h.Sum32()%uint32(len(options))]
}

// renderTemplate builds the deterministic reply for strategy.
func renderTemplate(s Strategy, transcript string, a sentiment.Analysis) string {
	switch s {
	case StrategyClarify:
		return clarifyReply
	case StrategyCrisis:
		return crisisReply
	case StrategyEmpathize:
		return empathize(transcript, a)
	case StrategyEncourage:
		return encourage(transcript, a)
	default:
		return invite(transcript, a)
	}
}

func empathize(transcript string, a sentiment.Analysis) string {
	var sb strings.Builder
	f, subj := feeling(a, negativeEmotions), subject(a)
	switch {
	case f != "" && subj != "":
		fmt.Fprintf(&sb, "It sounds like you're feeling %s about %s.", f, subj)
	case f != "":
		fmt.Fprintf(&sb, "It sounds like you're feeling %s.", f)
	case subj != "":
		fmt.Fprintf(&sb, "It sounds like %s is weighing on you.", subj)
	default:
		sb.WriteString("It sounds like you're going through something difficult.")
	}
	sb.WriteString(" That's completely understandable.")
	switch a.Strategy {
	case sentiment.SupportStressManagement:
		sb.WriteString(" " + stressTip)
	case sentiment.SupportDeEscalation:
		sb.WriteString(" " + deEscalateNote)
	}
	sb.WriteString(" " + pick(transcript, empathizeQuestions))
	return sb.String()
}

func encourage(transcript string, a sentiment.Analysis) string {
	var sb strings.Builder
	sb.WriteString("That's wonderful to hear!")
	f, subj := feeling(a, positiveEmotions), subject(a)
	switch {
	case f != "" && subj != "":
		fmt.Fprintf(&sb, " It sounds like you're feeling %s about %s.", f, subj)
	case f != "":
		fmt.Fprintf(&sb, " It sounds like you're feeling %s.", f)
	case subj != "":
		fmt.Fprintf(&sb, " It sounds like things are going well with %s.", subj)
	}
	sb.WriteString(" " + pick(transcript, encourageQuestions))
	return sb.String()
}

func invite(transcript string, a sentiment.Analysis) string {
	if subj := subject(a); subj != "" {
		return fmt.Sprintf("Thank you for sharing that about %s. %s", subj, pick(transcript, inviteQuestions))
	}
	return "Thank you for sharing that. " + pick(transcript, inviteQuestions)
}
