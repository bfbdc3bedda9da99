// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., Deepgram, the OpenAI
// audio API, or a local Whisper server) and exposes a uniform batch interface:
// one normalized recording in, one [Transcript] out. Recordings arrive already
// validated and converted to 16 kHz mono PCM by the audio package, so
// implementations never deal with container formats.
//
// Failures are classified with [TranscriptionError]. A recording that was
// received but contained no recognisable speech is [KindUnintelligible]; a
// backend that could not be reached or refused the request is
// [KindProviderUnavailable]. Callers rely on that distinction: unintelligible
// audio degrades gracefully, an unavailable provider fails the turn.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/solace/pkg/audio"
)

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Text is the transcribed speech content. Empty only when the recording was
	// unintelligible.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Language is the detected or requested language, if the provider reports it.
	Language string

	// Duration is the length of the audio that was transcribed.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a normalized recording into text.
	//
	// Returns a *TranscriptionError when the backend cannot produce text. Context
	// cancellation is returned unwrapped (errors.Is(err, context.Canceled)) so
	// that callers can tell an abandoned turn from a provider failure.
	Transcribe(ctx context.Context, payload *audio.Payload) (Transcript, error)
}

// Kind classifies a transcription failure.
type Kind int

const (
	// KindUnintelligible means the audio was received but no speech could be
	// recognised (silence, noise, mumbling).
	KindUnintelligible Kind = iota + 1

	// KindProviderUnavailable means the backend could not be reached, rejected
	// the request or returned a malformed response.
	KindProviderUnavailable
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindUnintelligible:
		return "unintelligible"
	case KindProviderUnavailable:
		return "provider_unavailable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TranscriptionError is returned by providers when no transcript can be produced.
type TranscriptionError struct {
	// Provider names the backend that failed (e.g., "deepgram").
	Provider string

	// Kind classifies the failure.
	Kind Kind

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stt: %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("stt: %s: %s", e.Provider, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *TranscriptionError) Unwrap() error { return e.Err }

// Unintelligible returns a *TranscriptionError of kind [KindUnintelligible].
func Unintelligible(provider string, err error) *TranscriptionError {
	return &TranscriptionError{Provider: provider, Kind: KindUnintelligible, Err: err}
}

// Unavailable returns a *TranscriptionError of kind [KindProviderUnavailable].
func Unavailable(provider string, err error) *TranscriptionError {
	return &TranscriptionError{Provider: provider, Kind: KindProviderUnavailable, Err: err}
}

// IsUnintelligible reports whether err is a TranscriptionError of kind
// [KindUnintelligible].
func IsUnintelligible(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te) && te.Kind == KindUnintelligible
}

// IsUnavailable reports whether err is a TranscriptionError of kind
// [KindProviderUnavailable].
func IsUnavailable(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te) && te.Kind == KindProviderUnavailable
}

// Classify converts a backend error into the error a Provider should return:
// nil stays nil, context errors (when ctx is done) pass through unwrapped, an
// existing *TranscriptionError is kept, and anything else becomes
// [KindProviderUnavailable].
func Classify(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var te *TranscriptionError
	if errors.As(err, &te) {
		return err
	}
	return Unavailable(provider, err)
}
