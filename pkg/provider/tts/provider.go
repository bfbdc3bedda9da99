// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Coqui server) and turns one supportive reply into one block of PCM audio.
// Synthesis is optional in the conversation pipeline: a failing provider never
// fails a turn, the reply is simply delivered as text only.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"time"

	"github.com/MrWong99/solace/pkg/audio"
)

// Speech is synthesised audio for one reply.
type Speech struct {
	// PCM is little-endian int16 audio.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono.
	Channels int
}

// Duration returns the playback length of the speech.
func (s *Speech) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return audio.PCMDuration(len(s.PCM), s.SampleRate, s.Channels)
}

// WAV returns the speech wrapped in a RIFF/WAVE container.
func (s *Speech) WAV() []byte {
	return audio.EncodeWAV(s.PCM, s.SampleRate, s.Channels)
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice. Returns an error if the
	// text is empty, the voice is unknown, or the backend fails.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Speech, error)
}
