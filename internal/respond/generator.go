// Package respond turns a transcript and its sentiment into a supportive
// reply.
//
// A [Generator] first chooses a [Strategy] from the sentiment label and the
// transcript's [sentiment.Analysis]: empathy and an open question for negative
// turns, acknowledgement and encouragement for positive ones, an invitation to
// say more for neutral ones. Two strategies override the label: an empty
// transcript always gets [StrategyClarify], and a crisis reading that needs
// attention always gets [StrategyCrisis] with a fixed safety message.
//
// Replies come from deterministic templates unless an [llm.Provider] is
// configured with [WithLLM]. In that mode a model writes the reply, and any
// failure of the model is absorbed: the error is logged as a
// [*GenerationError] and the reply falls back to a static message, so
// [Generator.Generate] never returns an empty reply. The only error Generate
// ever returns is the context's.
package respond

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/sentiment"
	"github.com/MrWong99/solace/pkg/provider/llm"
)

// Strategy is the kind of reply chosen for a turn.
type Strategy string

const (
	// StrategyEmpathize acknowledges a negative feeling and asks an open question.
	StrategyEmpathize Strategy = "empathize"

	// StrategyEncourage acknowledges a positive feeling and asks for more.
	StrategyEncourage Strategy = "encourage"

	// StrategyInvite invites more detail about a neutral statement.
	StrategyInvite Strategy = "invite"

	// StrategyClarify asks the user to repeat an unintelligible recording.
	StrategyClarify Strategy = "clarify"

	// StrategyCrisis points the user to immediate help.
	StrategyCrisis Strategy = "crisis"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 200
)

// errEmptyCompletion is wrapped in a GenerationError when the model answers
// with nothing but whitespace.
var errEmptyCompletion = errors.New("empty completion")

// Reply is the outcome of [Generator.Generate].
type Reply struct {
	// Text is the reply shown to the user. Never empty.
	Text string

	Strategy Strategy

	// Degraded is set when the model failed and Text is a fallback.
	Degraded bool

	// Analysis is the reading of the transcript the strategy was chosen from.
	Analysis sentiment.Analysis
}

// GenerationError reports that the language model could not produce a reply.
// Generate recovers from it; it is exposed for logging and for tests that
// drive the model path directly.
type GenerationError struct {
	Strategy Strategy
	Err      error
}

// Error implements error.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("respond: generate %s reply: %v", e.Strategy, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error { return e.Err }

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithLLM makes the generator write empathize, encourage and invite replies
// with p. Clarify and crisis replies are always templated.
func WithLLM(p llm.Provider) Option {
	return func(g *Generator) {
		g.llm = p
	}
}

// WithTemperature sets the LLM sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithMaxTokens bounds the length of LLM replies. Default: 200.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithFallbackMessage sets the static reply used when the model fails. When
// unset, the templated reply for the same strategy is used instead.
func WithFallbackMessage(msg string) Option {
	return func(g *Generator) {
		g.fallback = strings.TrimSpace(msg)
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// Generator produces replies. It holds no per-turn state and is safe for
// concurrent use.
type Generator struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
	fallback    string
	metrics     *observe.Metrics
}

// New returns a [Generator] in template mode unless [WithLLM] is given.
func New(opts ...Option) *Generator {
	g := &Generator{
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Mode reports "llm" or "template".
func (g *Generator) Mode() string {
	if g.llm != nil {
		return "llm"
	}
	return "template"
}

// Select returns the strategy for a transcript with the given sentiment and
// analysis.
func Select(transcript string, result sentiment.Result, a sentiment.Analysis) Strategy {
	switch {
	case strings.TrimSpace(transcript) == "":
		return StrategyClarify
	case a.Crisis.NeedsAttention:
		return StrategyCrisis
	case result.Label == sentiment.Negative:
		return StrategyEmpathize
	case result.Label == sentiment.Positive:
		return StrategyEncourage
	default:
		return StrategyInvite
	}
}

// Generate returns the reply for transcript. The error is non-nil only when
// ctx ends while the model is being consulted; in that case no reply exists.
func (g *Generator) Generate(ctx context.Context, transcript string, result sentiment.Result) (Reply, error) {
	a := sentiment.Analyze(transcript, result)
	s := Select(transcript, result, a)
	reply := Reply{Strategy: s, Analysis: a}

	if g.llm == nil || s == StrategyClarify || s == StrategyCrisis {
		reply.Text = renderTemplate(s, transcript, a)
		return reply, nil
	}

	text, err := g.complete(ctx, s, transcript, result, a)
	if err == nil {
		reply.Text = text
		return reply, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Reply{}, ctxErr
	}

	observe.Logger(ctx).Warn("respond: using fallback reply",
		"strategy", string(s),
		"err", err,
	)
	g.metrics.RecordDegraded(ctx, "respond", "generation_error")

	reply.Degraded = true
	reply.Text = g.fallback
	if reply.Text == "" {
		reply.Text = renderTemplate(s, transcript, a)
	}
	return reply, nil
}

// complete asks the model for a reply. Every failure is a *GenerationError.
func (g *Generator) complete(ctx context.Context, s Strategy, transcript string, result sentiment.Result, a sentiment.Analysis) (string, error) {
	ctx, span := observe.StartSpan(ctx, "respond.complete")
	defer span.End()
	span.SetAttributes(attribute.String("strategy", string(s)))

	start := time.Now()
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(s, result, a),
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: transcript},
		},
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("strategy", string(s))))

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errEmptyCompletion
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", &GenerationError{Strategy: s, Err: err}
	}
	return strings.TrimSpace(resp.Content), nil
}
