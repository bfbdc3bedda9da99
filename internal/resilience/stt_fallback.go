package resilience

import (
	"context"

	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
//
// Unintelligible audio is a property of the recording, not of the backend, so
// it is returned from the first provider that reports it without trying the
// others.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	if cfg.Terminal == nil {
		cfg.Terminal = stt.IsUnintelligible
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Available reports whether any backend's circuit is not open.
func (f *STTFallback) Available() bool { return f.group.Available() }

// Status returns the breaker state of every backend.
func (f *STTFallback) Status() []EntryStatus { return f.group.Status() }

// Transcribe sends the payload to the first healthy provider. When every
// provider fails the error is a [stt.KindProviderUnavailable]
// *stt.TranscriptionError that also matches [ErrAllFailed].
func (f *STTFallback) Transcribe(ctx context.Context, payload *audio.Payload) (stt.Transcript, error) {
	tr, err := ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, payload)
	})
	if err != nil {
		return stt.Transcript{}, stt.Classify(ctx, "fallback", err)
	}
	return tr, nil
}
