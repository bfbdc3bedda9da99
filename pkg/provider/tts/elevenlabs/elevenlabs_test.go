package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/solace/pkg/provider/tts"
)

// ---- helpers ----

// fakeElevenLabs accepts one socket, records the text frames it receives and,
// after the flush command, replays frames.
func fakeElevenLabs(t *testing.T, frames []string, received *[]map[string]any, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var m map[string]any
			_ = json.Unmarshal(msg, &m)
			mu.Lock()
			*received = append(*received, m)
			mu.Unlock()
			if m["text"] == "" {
				break
			}
		}
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func frame(pcm []byte, final bool) string {
	b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm), IsFinal: final})
	return string(b)
}

// ---- Synthesize ----

func TestSynthesize_CollectsFrames(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	srv := fakeElevenLabs(t, []string{
		frame([]byte{1, 2, 3, 4}, false),
		`{"message":"keepalive"}`,
		frame([]byte{5, 6}, true),
	}, &received, &mu)

	p, err := New("xi-key", WithEndpoint(wsURL(srv)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	speech, err := p.Synthesize(context.Background(), "You are not alone.", tts.VoiceProfile{ID: "voice-1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(speech.PCM) != string([]byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("PCM = %v", speech.PCM)
	}
	if speech.SampleRate != 16000 || speech.Channels != 1 {
		t.Errorf("format = %d Hz / %d ch", speech.SampleRate, speech.Channels)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("server received %d messages, want 3 (BOI, text, flush)", len(received))
	}
	if received[0]["xi_api_key"] != "xi-key" || received[0]["text"] != " " {
		t.Errorf("BOI = %v", received[0])
	}
	if received[1]["text"] != "You are not alone. " {
		t.Errorf("text message = %v", received[1])
	}
}

func TestSynthesize_CloseWithoutFinal(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	srv := fakeElevenLabs(t, []string{frame([]byte{9, 9}, false)}, &received, &mu)

	p, _ := New("xi-key", WithEndpoint(wsURL(srv)))
	speech, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(speech.PCM) != 2 {
		t.Errorf("PCM length = %d, want 2", len(speech.PCM))
	}
}

func TestSynthesize_ServerErrorFrame(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	srv := fakeElevenLabs(t, []string{`{"error":"quota_exceeded","message":"out of credits"}`}, &received, &mu)

	p, _ := New("xi-key", WithEndpoint(wsURL(srv)))
	_, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "v"})
	if err == nil || !strings.Contains(err.Error(), "quota_exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
	)
	srv := fakeElevenLabs(t, nil, &received, &mu)

	p, _ := New("xi-key", WithEndpoint(wsURL(srv)))
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Fatal("expected error when no audio is returned")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("xi-key")
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
	if _, err := p.Synthesize(context.Background(), "  ", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Error("expected error for blank text")
	}
}

// ---- message construction ----

func TestFlushMessageShape(t *testing.T) {
	data, err := json.Marshal(textMessage{Text: ""})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"text":""}` {
		t.Errorf("flush = %s, want {\"text\":\"\"}", data)
	}
}

func TestBuildURL(t *testing.T) {
	p, _ := New("key")
	url := p.buildURL("voice-abc123")
	if !strings.HasPrefix(url, "wss://api.elevenlabs.io/v1/text-to-speech/voice-abc123/stream-input") {
		t.Errorf("unexpected URL: %s", url)
	}
	if !strings.Contains(url, "model_id=eleven_flash_v2_5") || !strings.Contains(url, "output_format=pcm_16000") {
		t.Errorf("URL missing query params: %s", url)
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("expected model %q, got %q", defaultModel, p.model)
	}
	if p.outputFormat != defaultOutputFmt || p.sampleRate != 16000 {
		t.Errorf("output = %q @ %d", p.outputFormat, p.sampleRate)
	}
}

func TestNew_WithOptions(t *testing.T) {
	p, err := New("key", WithModel("eleven_multilingual_v2"), WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("expected model 'eleven_multilingual_v2', got %q", p.model)
	}
	if p.sampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", p.sampleRate)
	}
}

func TestNew_RejectsCompressedFormat(t *testing.T) {
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for mp3 output format")
	}
}
