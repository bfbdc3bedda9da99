// Package audio normalizes recorded audio payloads into the canonical format
// consumed by speech-to-text providers: 16 kHz mono little-endian int16 PCM.
//
// Three input encodings are accepted: raw PCM (pcm_s16le), RIFF/WAVE containers
// with 16-bit PCM data, and length-prefixed Opus packet streams. Everything in
// this package is a pure function over its input; nothing is retained between
// calls, so a single [Ingester] may be shared by any number of goroutines.
package audio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Encoding identifies the container/codec of an incoming audio payload.
type Encoding string

const (
	// EncodingPCM is raw little-endian signed 16-bit PCM. The declared Format
	// must carry SampleRate and Channels because the bytes carry neither.
	EncodingPCM Encoding = "pcm_s16le"

	// EncodingWAV is a RIFF/WAVE container holding 16-bit PCM. Sample rate and
	// channel count are read from the header; declared values are ignored.
	EncodingWAV Encoding = "wav"

	// EncodingOpus is a sequence of Opus packets, each preceded by a 2-byte
	// big-endian length. Packets are decoded at 48 kHz.
	EncodingOpus Encoding = "opus"
)

// Canonical output format of [Ingester.Normalize].
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
)

// ParseEncoding maps a user-supplied encoding name to an [Encoding]. Common
// aliases ("pcm", "s16le", "wave", "audio/wav") are accepted.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcm", "pcm_s16le", "s16le", "raw", "linear16":
		return EncodingPCM, nil
	case "wav", "wave", "audio/wav", "audio/wave", "audio/x-wav":
		return EncodingWAV, nil
	case "opus", "audio/opus":
		return EncodingOpus, nil
	default:
		return "", fmt.Errorf("audio: unknown encoding %q", s)
	}
}

// Format is the declared shape of a raw payload as supplied by the recording
// collaborator.
type Format struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// String returns a human-readable description, e.g. "wav 48000Hz stereo".
func (f Format) String() string {
	if f.SampleRate == 0 {
		return string(f.Encoding)
	}
	return fmt.Sprintf("%s %s", f.Encoding, formatString(f.SampleRate, f.Channels))
}

// Payload is a validated, normalized audio payload. PCM always holds 16 kHz
// mono little-endian int16 samples.
type Payload struct {
	// PCM holds the normalized samples.
	PCM []byte

	// SampleRate is always [CanonicalSampleRate].
	SampleRate int

	// Channels is always [CanonicalChannels].
	Channels int

	// Duration is the playback length of PCM.
	Duration time.Duration

	// Source records the declared format the payload was decoded from.
	Source Format
}

// Samples returns the number of PCM samples in the payload.
func (p *Payload) Samples() int {
	return len(p.PCM) / 2
}

// DetectFormat infers the encoding of an uploaded file from its leading bytes,
// file name and MIME type, in that order of precedence. It returns false when
// nothing conclusive was found; callers must then declare the format
// explicitly.
func DetectFormat(filename, contentType string, head []byte) (Format, bool) {
	if len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")) {
		return Format{Encoding: EncodingWAV}, true
	}
	if ct := strings.ToLower(contentType); ct != "" {
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		if enc, err := ParseEncoding(ct); err == nil {
			return Format{Encoding: enc}, true
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return Format{Encoding: EncodingWAV}, true
	case ".opus":
		return Format{Encoding: EncodingOpus}, true
	}
	return Format{}, false
}
