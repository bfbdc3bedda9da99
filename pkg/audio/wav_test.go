package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/solace/pkg/audio"
)

func TestEncodeParseWAV_RoundTrip(t *testing.T) {
	pcm := samplesToBytes([]int16{1, -2, 3, -4})
	w, err := audio.ParseWAV(audio.EncodeWAV(pcm, 22050, 2))
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if w.SampleRate != 22050 || w.Channels != 2 {
		t.Errorf("format: got %dHz %dch, want 22050Hz 2ch", w.SampleRate, w.Channels)
	}
	if string(w.PCM) != string(pcm) {
		t.Errorf("PCM mismatch: got %v, want %v", w.PCM, pcm)
	}
}

func TestParseWAV_SkipsUnknownChunks(t *testing.T) {
	wav := audio.EncodeWAV(samplesToBytes([]int16{7, 8}), 16000, 1)
	// Splice a LIST chunk with an odd payload between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)
	w, err := audio.ParseWAV(spliced)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if got := bytesToSamples(w.PCM); len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("samples: got %v, want [7 8]", got)
	}
}

func TestParseWAV_Errors(t *testing.T) {
	valid := audio.EncodeWAV(samplesToBytes([]int16{1, 2}), 16000, 1)

	eightBit := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)

	float := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := []struct {
		name string
		data []byte
	}{
		{"not riff", []byte("this is not a wav file at all")},
		{"header only", valid[:12]},
		{"8-bit", eightBit},
		{"float", float},
		{"no data chunk", valid[:36]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := audio.ParseWAV(tc.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
