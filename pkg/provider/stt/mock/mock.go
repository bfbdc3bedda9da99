// Package mock provides a test double for the stt.Provider interface.
//
// Provider returns scripted transcripts and errors and records every call so
// tests can assert on the audio that reached the transcription stage.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "hello"}}
//	tr, err := p.Transcribe(ctx, payload)
//
// To simulate an unintelligible recording:
//
//	p := &mock.Provider{Err: stt.Unintelligible("mock", nil)}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Payload is the normalized audio passed to Transcribe.
	Payload *audio.Payload
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Fn, if set, overrides Result and Err.
	Fn func(ctx context.Context, payload *audio.Payload) (stt.Transcript, error)

	// BlockUntilDone makes Transcribe wait for ctx cancellation and return
	// ctx.Err(). Used to exercise abandonment at the transcription boundary.
	BlockUntilDone bool

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, payload *audio.Payload) (stt.Transcript, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Payload: payload})
	fn, block, result, err := p.Fn, p.BlockUntilDone, p.Result, p.Err
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return stt.Transcript{}, ctx.Err()
	}
	if fn != nil {
		return fn(ctx, payload)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
