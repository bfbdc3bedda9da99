package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV is a decoded RIFF/WAVE container.
type WAV struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// ParseWAV extracts 16-bit PCM data from a RIFF/WAVE byte slice. Chunks other
// than "fmt " and "data" are skipped. A data chunk whose declared size
// overruns the buffer is truncated to what is present, since streaming
// encoders frequently write a placeholder size.
func ParseWAV(b []byte) (*WAV, error) {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return nil, errors.New("audio: wav: missing RIFF/WAVE header")
	}

	var (
		w      WAV
		sawFmt bool
		pos    = 12
	)
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return nil, errors.New("audio: wav: short fmt chunk")
			}
			tag := binary.LittleEndian.Uint16(b[body:])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE; the sub-format is assumed PCM.
			if tag != 1 && tag != 0xFFFE {
				return nil, fmt.Errorf("audio: wav: unsupported format tag %d (only PCM)", tag)
			}
			w.Channels = int(binary.LittleEndian.Uint16(b[body+2:]))
			w.SampleRate = int(binary.LittleEndian.Uint32(b[body+4:]))
			bits := binary.LittleEndian.Uint16(b[body+14:])
			if bits != 16 {
				return nil, fmt.Errorf("audio: wav: unsupported bit depth %d (only 16)", bits)
			}
			if w.Channels <= 0 || w.SampleRate <= 0 {
				return nil, errors.New("audio: wav: zero channels or sample rate")
			}
			sawFmt = true
		case "data":
			if !sawFmt {
				return nil, errors.New("audio: wav: data chunk before fmt chunk")
			}
			end := body + size
			if end > len(b) || size == 0 {
				end = len(b)
			}
			data := b[body:end]
			frame := 2 * w.Channels
			data = data[:len(data)-len(data)%frame]
			w.PCM = data
			return &w, nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}
	if !sawFmt {
		return nil, errors.New("audio: wav: missing fmt chunk")
	}
	return nil, errors.New("audio: wav: missing data chunk")
}

// EncodeWAV wraps raw int16 PCM samples in a minimal 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const headerSize = 44
	dataSize := len(pcm)
	buf := make([]byte, headerSize+dataSize)

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[headerSize:], pcm)
	return buf
}
