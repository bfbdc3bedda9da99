package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/MrWong99/solace/internal/config"
	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/resilience"
	"github.com/MrWong99/solace/pkg/provider/llm"
	"github.com/MrWong99/solace/pkg/provider/stt"
	"github.com/MrWong99/solace/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. STT is required; a
// nil LLM or TTS means the slot is not configured.
type Providers struct {
	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider

	// closers release backend resources such as loaded models.
	closers []func() error
}

// Close releases every backend that holds resources. It is safe to call on
// a Providers value built by hand.
func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func (p *Providers) track(v any) {
	if c, ok := v.(io.Closer); ok {
		p.closers = append(p.closers, c.Close)
	}
}

// BuildProviders instantiates every provider named in cfg through reg. Each
// configured slot is wrapped in a fallback chain with one circuit breaker per
// backend, even when no fallbacks are declared, so readiness can report
// breaker state.
//
// On error every backend created so far is closed.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	ps := &Providers{}
	fail := func(err error) (*Providers, error) {
		_ = ps.Close()
		return nil, err
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	sttEntries := withSilenceRMS(chain(cfg.Providers.STT), cfg.Audio.SilenceRMS)
	if len(sttEntries) == 0 {
		return nil, errors.New("app: providers.stt is not configured")
	}
	var sttChain *resilience.STTFallback
	for i, e := range sttEntries {
		p, err := reg.CreateSTT(e)
		if err != nil {
			return fail(fmt.Errorf("app: create stt provider %q: %w", e.Name, err))
		}
		ps.track(p)
		if i == 0 {
			sttChain = resilience.NewSTTFallback(p, e.Name, fallbackConfig("stt", m))
		} else {
			sttChain.AddFallback(e.Name, p)
		}
		slog.Info("provider created", "kind", "stt", "name", e.Name, "fallback", i > 0)
	}
	ps.STT = sttChain

	// ── LLM ───────────────────────────────────────────────────────────────────
	var llmChain *resilience.LLMFallback
	for i, e := range chain(cfg.Providers.LLM) {
		p, err := reg.CreateLLM(e)
		if err != nil {
			return fail(fmt.Errorf("app: create llm provider %q: %w", e.Name, err))
		}
		ps.track(p)
		if i == 0 {
			llmChain = resilience.NewLLMFallback(p, e.Name, fallbackConfig("llm", m))
		} else {
			llmChain.AddFallback(e.Name, p)
		}
		slog.Info("provider created", "kind", "llm", "name", e.Name, "fallback", i > 0)
	}
	if llmChain != nil {
		ps.LLM = llmChain
	}

	// ── TTS ───────────────────────────────────────────────────────────────────
	var ttsChain *resilience.TTSFallback
	for i, e := range chain(cfg.Providers.TTS) {
		p, err := reg.CreateTTS(e)
		if err != nil {
			return fail(fmt.Errorf("app: create tts provider %q: %w", e.Name, err))
		}
		ps.track(p)
		if i == 0 {
			ttsChain = resilience.NewTTSFallback(p, e.Name, fallbackConfig("tts", m))
		} else {
			ttsChain.AddFallback(e.Name, p)
		}
		slog.Info("provider created", "kind", "tts", "name", e.Name, "fallback", i > 0)
	}
	if ttsChain != nil {
		ps.TTS = ttsChain
	}

	return ps, nil
}

// chain flattens an entry and its fallbacks into creation order. An entry
// without a name yields nothing.
func chain(e config.ProviderEntry) []config.ProviderEntry {
	if e.Name == "" {
		return nil
	}
	primary := e
	primary.Fallbacks = nil
	return append([]config.ProviderEntry{primary}, e.Fallbacks...)
}

// withSilenceRMS injects the shared silence gate into every STT entry that
// does not set its own. The entries' option maps are copied, never mutated.
func withSilenceRMS(entries []config.ProviderEntry, rms *float64) []config.ProviderEntry {
	if rms == nil {
		return entries
	}
	out := make([]config.ProviderEntry, len(entries))
	for i, e := range entries {
		opts := maps.Clone(e.Options)
		if opts == nil {
			opts = make(map[string]any, 1)
		}
		if _, ok := opts["silence_rms"]; !ok {
			opts["silence_rms"] = *rms
		}
		e.Options = opts
		out[i] = e
	}
	return out
}

func fallbackConfig(kind string, m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{Kind: kind, Metrics: m}
}
