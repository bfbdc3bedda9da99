package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"layeh.com/gopus"
)

// Opus streams are decoded directly to mono at the codec's native rate.
const (
	opusSampleRate = 48000
	opusChannels   = 1
	// opusMaxFrameSize is the largest frame Opus can produce (120 ms at 48 kHz).
	opusMaxFrameSize = opusSampleRate * 120 / 1000
)

var errTooLong = errors.New("audio: opus: stream exceeds duration bound")

// decodeOpusStream decodes a sequence of 2-byte big-endian length-prefixed
// Opus packets into 48 kHz mono PCM. Decoding stops with errTooLong as soon as
// the decoded length passes maxDur, so a hostile stream cannot force
// unbounded allocation.
func decodeOpusStream(b []byte, maxDur time.Duration) ([]byte, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	maxBytes := int(maxDur.Seconds()*opusSampleRate) * 2 * opusChannels
	var out []byte
	for pos := 0; pos < len(b); {
		if pos+2 > len(b) {
			return nil, errors.New("audio: opus: truncated packet length")
		}
		n := int(binary.BigEndian.Uint16(b[pos:]))
		pos += 2
		if n == 0 || pos+n > len(b) {
			return nil, fmt.Errorf("audio: opus: bad packet length %d at offset %d", n, pos-2)
		}
		samples, err := dec.Decode(b[pos:pos+n], opusMaxFrameSize, false)
		if err != nil {
			return nil, fmt.Errorf("audio: opus decode: %w", err)
		}
		out = append(out, int16sToBytes(samples)...)
		if maxBytes > 0 && len(out) > maxBytes {
			return nil, errTooLong
		}
		pos += n
	}
	return out, nil
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
