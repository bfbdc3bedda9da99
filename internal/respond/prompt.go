package respond

import (
	"fmt"
	"strings"

	"github.com/MrWong99/solace/internal/sentiment"
)

// basePrompt is shared by every model-written reply.
const basePrompt = `You are a warm, patient listener in an emotional support voice chat.

Rules:
- Reply in two to four short sentences of plain spoken English. No lists, no markdown, no emoji.
- Never diagnose, never give medical, legal or financial advice, and never claim to be a therapist.
- Do not repeat the user's words back verbatim.
- End with exactly one open-ended question.`

var strategyInstructions = map[Strategy]string{
	StrategyEmpathize: "The user sounds upset. Acknowledge the feeling they describe and validate it before asking gently what is behind it.",
	StrategyEncourage: "The user sounds positive. Share in their good news and encourage them to tell you more about it.",
	StrategyInvite:    "The user's mood is unclear. Thank them for sharing and invite them to say more about how they feel.",
}

// systemPrompt builds the system prompt for strategy s, carrying what the
// analysis found so the model does not have to guess.
func systemPrompt(s Strategy, result sentiment.Result, a sentiment.Analysis) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")
	sb.WriteString(strategyInstructions[s])
	sb.WriteString("\n\nWhat we know about this message:\n")
	fmt.Fprintf(&sb, "- sentiment: %s (compound %.2f)\n", result.Label, result.Compound)
	if a.PrimaryEmotion != sentiment.EmotionNeutral {
		fmt.Fprintf(&sb, "- primary emotion: %s\n", a.PrimaryEmotion)
	}
	if a.Topic != sentiment.TopicGeneral {
		fmt.Fprintf(&sb, "- topic: %s", a.Topic)
		if a.Subject != "" {
			fmt.Fprintf(&sb, " (%s)", a.Subject)
		}
		sb.WriteByte('\n')
	}
	if a.Stress == sentiment.LevelHigh {
		sb.WriteString("- the user seems highly stressed; you may suggest one small calming step\n")
	}
	return sb.String()
}
