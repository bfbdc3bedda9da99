package audio

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxDuration is the longest recording accepted when no explicit bound
// is configured.
const DefaultMaxDuration = 60 * time.Second

// Upper bounds on the declared layout of a recording.
const (
	MaxChannels   = 8
	MaxSampleRate = 192000
)

// InvalidAudioError reports a payload that cannot be accepted. It is always
// user-correctable: the caller should ask the user to record again.
type InvalidAudioError struct {
	// Reason is a short, user-presentable explanation.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

// Error implements error.
func (e *InvalidAudioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio: invalid audio: %s: %v", e.Reason, e.Err)
	}
	return "audio: invalid audio: " + e.Reason
}

// Unwrap returns the underlying decode error.
func (e *InvalidAudioError) Unwrap() error { return e.Err }

// IsInvalidAudio reports whether err (or anything it wraps) is an
// [*InvalidAudioError].
func IsInvalidAudio(err error) bool {
	var iae *InvalidAudioError
	return errors.As(err, &iae)
}

func invalid(reason string, err error) *InvalidAudioError {
	return &InvalidAudioError{Reason: reason, Err: err}
}

// Option is a functional option for configuring an [Ingester].
type Option func(*Ingester)

// WithMaxDuration sets the inclusive upper bound on payload duration.
// Non-positive values are ignored.
func WithMaxDuration(d time.Duration) Option {
	return func(i *Ingester) {
		if d > 0 {
			i.maxDuration = d
		}
	}
}

// Ingester validates and normalizes raw recordings. It holds configuration
// only and is safe for concurrent use.
type Ingester struct {
	maxDuration time.Duration
}

// NewIngester creates an Ingester with [DefaultMaxDuration] unless overridden.
func NewIngester(opts ...Option) *Ingester {
	i := &Ingester{maxDuration: DefaultMaxDuration}
	for _, o := range opts {
		o(i)
	}
	return i
}

// MaxDuration returns the configured duration bound.
func (i *Ingester) MaxDuration() time.Duration { return i.maxDuration }

// Normalize decodes raw according to the declared format, downmixes to mono,
// resamples to 16 kHz and enforces the duration bound. Every failure is an
// [*InvalidAudioError].
func (i *Ingester) Normalize(raw []byte, format Format) (*Payload, error) {
	if len(raw) == 0 {
		return nil, invalid("empty recording", nil)
	}

	var (
		pcm      []byte
		rate     int
		channels int
	)
	switch format.Encoding {
	case EncodingPCM:
		if format.SampleRate <= 0 || format.Channels <= 0 {
			return nil, invalid("raw PCM requires a sample rate and channel count", nil)
		}
		if format.Channels > MaxChannels || format.SampleRate > MaxSampleRate {
			return nil, invalid(fmt.Sprintf("unsupported PCM layout: %d channels at %d Hz", format.Channels, format.SampleRate), nil)
		}
		if len(raw)%(2*format.Channels) != 0 {
			return nil, invalid("truncated PCM samples", nil)
		}
		pcm, rate, channels = raw, format.SampleRate, format.Channels
	case EncodingWAV:
		w, err := ParseWAV(raw)
		if err != nil {
			return nil, invalid("malformed WAV file", err)
		}
		pcm, rate, channels = w.PCM, w.SampleRate, w.Channels
	case EncodingOpus:
		decoded, err := decodeOpusStream(raw, i.maxDuration)
		if err != nil {
			if errors.Is(err, errTooLong) {
				return nil, invalid(fmt.Sprintf("recording longer than %s", i.maxDuration), nil)
			}
			return nil, invalid("malformed Opus stream", err)
		}
		pcm, rate, channels = decoded, opusSampleRate, opusChannels
	case "":
		return nil, invalid("audio format not declared", nil)
	default:
		return nil, invalid(fmt.Sprintf("unsupported encoding %q", format.Encoding), nil)
	}

	if len(pcm) == 0 {
		return nil, invalid("recording contains no audio", nil)
	}
	if channels > MaxChannels || rate > MaxSampleRate {
		return nil, invalid(fmt.Sprintf("unsupported layout: %d channels at %d Hz", channels, rate), nil)
	}

	// Check the bound before converting so oversized uploads are rejected
	// without paying for a resample.
	dur := PCMDuration(len(pcm), rate, channels)
	if dur > i.maxDuration {
		return nil, invalid(fmt.Sprintf("recording longer than %s", i.maxDuration), nil)
	}

	if channels != CanonicalChannels {
		pcm = DownmixToMono(pcm, channels)
	}
	if rate != CanonicalSampleRate {
		pcm = ResampleMono16(pcm, rate, CanonicalSampleRate)
	}
	if len(pcm) == 0 {
		return nil, invalid("recording contains no audio", nil)
	}

	return &Payload{
		PCM:        pcm,
		SampleRate: CanonicalSampleRate,
		Channels:   CanonicalChannels,
		Duration:   PCMDuration(len(pcm), CanonicalSampleRate, CanonicalChannels),
		Source:     Format{Encoding: format.Encoding, SampleRate: rate, Channels: channels},
	}, nil
}

// PCMDuration returns the playback length of n bytes of int16 PCM.
func PCMDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := int64(n / (2 * channels))
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
