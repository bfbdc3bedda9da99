// Package turn runs one conversation turn: recorded audio in, a supportive
// reply out.
//
// A [Pipeline] executes its stages strictly in order:
//
//	ingest → transcribe → classify → respond → (synthesize)
//
// and produces exactly one immutable [Turn] or exactly one [*StageError].
// Two conditions are absorbed instead of failing the turn: audio the
// transcriber found unintelligible (the turn continues with an empty
// transcript, neutral sentiment and a clarifying reply) and a failed speech
// synthesis (the turn completes without reply audio). Generation outages are
// absorbed inside the responder.
//
// The pipeline holds no per-turn state between calls; concurrent
// [Pipeline.ProcessTurn] calls share nothing but the configured providers.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/respond"
	"github.com/MrWong99/solace/internal/sentiment"
	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
	"github.com/MrWong99/solace/pkg/provider/tts"
)

// Ingester validates and normalizes raw recordings. *audio.Ingester
// satisfies it.
type Ingester interface {
	Normalize(raw []byte, format audio.Format) (*audio.Payload, error)
}

// Classifier maps a transcript to its sentiment. *sentiment.Classifier
// satisfies it.
type Classifier interface {
	Classify(text string) sentiment.Result
}

// Responder writes the reply for a classified transcript. *respond.Generator
// satisfies it. Generate must return a non-empty reply or an error.
type Responder interface {
	Generate(ctx context.Context, transcript string, result sentiment.Result) (respond.Reply, error)
}

// Turn is the record of one completed turn. ProcessTurn returns a fresh value
// and keeps no reference to it.
type Turn struct {
	// ID is a UUIDv7, so IDs sort by creation time.
	ID string `json:"id"`

	// Transcript is empty only when the recording was unintelligible.
	Transcript string `json:"transcript"`

	Sentiment sentiment.Result   `json:"sentiment"`
	Analysis  sentiment.Analysis `json:"analysis"`

	// Response is never empty.
	Response string           `json:"response"`
	Strategy respond.Strategy `json:"strategy"`

	// Degraded is set when the turn completed on a fallback path.
	Degraded bool `json:"degraded"`

	// ReplyAudio is the synthesized reply as a WAV file. Nil when no
	// synthesizer is configured or synthesis failed.
	ReplyAudio []byte `json:"-"`

	// Timestamp is when the turn was received.
	Timestamp time.Time `json:"timestamp"`

	// Duration is the time spent processing the turn.
	Duration time.Duration `json:"duration"`
}

// StateHook observes every state transition of every turn. It is called
// synchronously from the goroutine running the turn and must not block.
type StateHook func(turnID string, s State)

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithSynthesizer adds the synthesize stage, rendering each reply with p in
// the given voice.
func WithSynthesizer(p tts.Provider, voice tts.VoiceProfile) Option {
	return func(pl *Pipeline) {
		pl.tts = p
		pl.voice = voice
	}
}

// WithStateHook registers an observer for state transitions.
func WithStateHook(h StateHook) Option {
	return func(pl *Pipeline) {
		pl.hook = h
	}
}

// WithMaxConcurrent bounds the number of turns processed at once. Zero or
// negative means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithQueueTimeout bounds how long a turn waits for a slot when the
// concurrency limit is reached before failing with [ErrBusy]. Zero waits
// until ctx ends.
func WithQueueTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		pl.queueTimeout = d
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(pl *Pipeline) {
		pl.metrics = m
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) {
		pl.now = now
	}
}

// Pipeline runs conversation turns. It is safe for concurrent use.
type Pipeline struct {
	ingest     Ingester
	stt        stt.Provider
	classifier Classifier
	responder  Responder

	tts   tts.Provider
	voice tts.VoiceProfile

	hook         StateHook
	sem          *semaphore.Weighted
	queueTimeout time.Duration
	metrics      *observe.Metrics
	now          func() time.Time
}

// New returns a Pipeline over the four mandatory stages.
func New(ingest Ingester, transcriber stt.Provider, classifier Classifier, responder Responder, opts ...Option) (*Pipeline, error) {
	var errs []error
	if ingest == nil {
		errs = append(errs, errors.New("ingester is nil"))
	}
	if transcriber == nil {
		errs = append(errs, errors.New("transcriber is nil"))
	}
	if classifier == nil {
		errs = append(errs, errors.New("classifier is nil"))
	}
	if responder == nil {
		errs = append(errs, errors.New("responder is nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("turn: new pipeline: %w", err)
	}

	p := &Pipeline{
		ingest:     ingest,
		stt:        transcriber,
		classifier: classifier,
		responder:  responder,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p, nil
}

// Synthesizes reports whether the pipeline renders reply audio.
func (p *Pipeline) Synthesizes() bool { return p.tts != nil }

// ProcessTurn runs one turn over raw audio in the declared format.
//
// On success the returned Turn has a non-empty Response. On failure no Turn
// is returned and the error is a *StageError. An abandoned turn (ctx done)
// fails with the context's error wrapped in a *StageError naming the stage
// that was interrupted. A turn that never got a concurrency slot fails with
// [ErrBusy], or with the bare context error if ctx ended while it waited.
func (p *Pipeline) ProcessTurn(ctx context.Context, raw []byte, format audio.Format) (*Turn, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	if p.sem != nil {
		defer p.sem.Release(1)
	}

	r := &run{
		p:     p,
		id:    newID(),
		start: p.now(),
	}
	ctx, span := observe.StartTurnSpan(ctx, r.id)
	defer span.End()
	r.span = span

	p.metrics.ActiveTurns.Add(ctx, 1)
	defer p.metrics.ActiveTurns.Add(ctx, -1)

	return r.execute(ctx, raw, format)
}

// acquire takes a concurrency slot, honouring the queue timeout.
func (p *Pipeline) acquire(ctx context.Context) error {
	if p.sem == nil {
		return nil
	}
	if p.sem.TryAcquire(1) {
		return nil
	}
	wctx := ctx
	if p.queueTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, p.queueTimeout)
		defer cancel()
	}
	if err := p.sem.Acquire(wctx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.metrics.RecordTurn(ctx, observe.OutcomeAbandoned, "", 0)
			return ctxErr
		}
		p.metrics.RecordTurn(ctx, observe.OutcomeRejected, "", 0)
		return ErrBusy
	}
	return nil
}

// run carries the bookkeeping of one ProcessTurn call.
type run struct {
	p     *Pipeline
	id    string
	start time.Time
	span  trace.Span
	label string
}

func (r *run) execute(ctx context.Context, raw []byte, format audio.Format) (*Turn, error) {
	p := r.p
	log := observe.Logger(ctx)
	r.transition(StateReceived)

	// ── Ingest ────────────────────────────────────────────────────────────────

	t0 := time.Now()
	payload, err := p.ingest.Normalize(raw, format)
	observeStage(ctx, p.metrics.IngestDuration, t0)
	if err != nil {
		return r.fail(ctx, StageIngest, err)
	}
	r.transition(StateIngested)
	log.Debug("turn: ingested", "format", format.String(), "duration", payload.Duration)

	// ── Transcribe ────────────────────────────────────────────────────────────

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, StageTranscribe, err)
	}
	t0 = time.Now()
	tr, err := p.stt.Transcribe(ctx, payload)
	observeStage(ctx, p.metrics.STTDuration, t0)
	unintelligible := false
	switch {
	case err == nil && strings.TrimSpace(tr.Text) == "":
		unintelligible = true
	case err == nil:
	case stt.IsUnintelligible(err) && ctx.Err() == nil:
		unintelligible = true
	default:
		return r.fail(ctx, StageTranscribe, err)
	}
	text := strings.TrimSpace(tr.Text)
	if unintelligible {
		text = ""
		p.metrics.RecordDegraded(ctx, string(StageTranscribe), "unintelligible")
		log.Warn("turn: recording unintelligible, asking to repeat")
	}
	r.transition(StateTranscribed)

	// ── Classify ──────────────────────────────────────────────────────────────

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, StageClassify, err)
	}
	t0 = time.Now()
	result := sentiment.NeutralResult()
	if text != "" {
		result = p.classifier.Classify(text)
	}
	observeStage(ctx, p.metrics.ClassifyDuration, t0)
	if want := sentiment.LabelFor(result.Compound); result.Label != want {
		return r.fail(ctx, StageClassify,
			fmt.Errorf("label %q inconsistent with compound %.4f (want %q)", result.Label, result.Compound, want))
	}
	r.label = string(result.Label)
	r.transition(StateClassified)
	log.Debug("turn: classified", "label", result.Label, "compound", result.Compound)

	// ── Respond ───────────────────────────────────────────────────────────────

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, StageRespond, err)
	}
	reply, err := p.responder.Generate(ctx, text, result)
	if err != nil {
		return r.fail(ctx, StageRespond, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return r.fail(ctx, StageRespond, errors.New("responder returned an empty reply"))
	}
	r.transition(StateResponded)

	// ── Synthesize ────────────────────────────────────────────────────────────

	last := StageRespond
	var replyAudio []byte
	if p.tts != nil {
		last = StageSynthesize
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, StageSynthesize, err)
		}
		t0 = time.Now()
		speech, err := p.tts.Synthesize(ctx, reply.Text, p.voice)
		observeStage(ctx, p.metrics.TTSDuration, t0)
		switch {
		case err == nil:
			replyAudio = speech.WAV()
		case ctx.Err() != nil:
			return r.fail(ctx, StageSynthesize, ctx.Err())
		default:
			p.metrics.RecordDegraded(ctx, string(StageSynthesize), "tts_error")
			log.Warn("turn: synthesis failed, replying without audio", "err", err)
		}
		r.transition(StateSynthesized)
	}

	// An abandoned turn is never delivered, even when every stage finished.
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, last, err)
	}

	t := &Turn{
		ID:         r.id,
		Transcript: text,
		Sentiment:  result,
		Analysis:   reply.Analysis,
		Response:   reply.Text,
		Strategy:   reply.Strategy,
		Degraded:   reply.Degraded || unintelligible,
		ReplyAudio: replyAudio,
		Timestamp:  r.start,
		Duration:   p.now().Sub(r.start),
	}
	r.transition(StateComplete)
	p.metrics.RecordTurn(ctx, observe.OutcomeComplete, r.label, t.Duration)
	r.span.SetAttributes(
		attribute.String("turn.label", r.label),
		attribute.String("turn.strategy", string(t.Strategy)),
		attribute.Bool("turn.degraded", t.Degraded),
	)
	log.Info("turn: complete",
		"label", result.Label,
		"strategy", string(t.Strategy),
		"degraded", t.Degraded,
		"duration", t.Duration,
	)
	return t, nil
}

// fail moves the turn to StateFailed and wraps err with the stage.
func (r *run) fail(ctx context.Context, stage Stage, err error) (*Turn, error) {
	r.transition(StateFailed)

	outcome := observe.OutcomeFailed
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		outcome = observe.OutcomeAbandoned
	}
	d := r.p.now().Sub(r.start)
	r.p.metrics.RecordTurn(ctx, outcome, r.label, d)

	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, string(stage))
	r.span.SetAttributes(attribute.String("turn.failed_stage", string(stage)))

	observe.Logger(ctx).Info("turn: failed",
		"stage", string(stage),
		"outcome", outcome,
		"err", err,
	)
	return nil, &StageError{Stage: stage, TurnID: r.id, Err: err}
}

func (r *run) transition(s State) {
	if r.p.hook != nil {
		r.p.hook(r.id, s)
	}
}

// observeStage records the time since start on h.
func observeStage(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	h.Record(ctx, time.Since(start).Seconds())
}

// newID returns a time-ordered UUID, falling back to a random one if the
// clock source fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
