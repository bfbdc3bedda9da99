package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/solace/internal/health"
	"github.com/MrWong99/solace/internal/respond"
	"github.com/MrWong99/solace/internal/sentiment"
	"github.com/MrWong99/solace/internal/server"
	"github.com/MrWong99/solace/internal/turn"
	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
	sttmock "github.com/MrWong99/solace/pkg/provider/stt/mock"
	"github.com/MrWong99/solace/pkg/provider/tts"
	ttsmock "github.com/MrWong99/solace/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// toneWAV returns d of a 440 Hz sine as a 16 kHz mono WAV file.
func toneWAV(d time.Duration) []byte {
	n := int(d.Seconds() * 16000)
	pcm := make([]byte, n*2)
	for i := range n {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return audio.EncodeWAV(pcm, 16000, 1)
}

// upload builds a multipart POST /analyze request. A nil file omits the
// audio field.
func upload(t *testing.T, filename string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// processorFunc adapts a function to server.Processor.
type processorFunc func(ctx context.Context, raw []byte, format audio.Format) (*turn.Turn, error)

func (f processorFunc) ProcessTurn(ctx context.Context, raw []byte, format audio.Format) (*turn.Turn, error) {
	return f(ctx, raw, format)
}

func failing(err error) processorFunc {
	return func(context.Context, []byte, audio.Format) (*turn.Turn, error) { return nil, err }
}

func newServer(t *testing.T, p server.Processor, opts ...server.Option) http.Handler {
	t.Helper()
	s, err := server.New(p, opts...)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return s.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (msg, detail string) {
	t.Helper()
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error, body.Detail
}

// ── POST /analyze ─────────────────────────────────────────────────────────────

func TestAnalyze_EndToEnd(t *testing.T) {
	t.Parallel()
	const text = "I'm feeling anxious about my upcoming presentation"
	p, err := turn.New(
		audio.NewIngester(),
		&sttmock.Provider{Result: stt.Transcript{Text: text}},
		sentiment.New(),
		respond.New(),
		turn.WithSynthesizer(&ttsmock.Provider{}, tts.VoiceProfile{ID: "calm"}),
	)
	if err != nil {
		t.Fatalf("turn.New: %v", err)
	}
	h := newServer(t, p, server.WithReplyCache(4))

	rec := serve(h, upload(t, "note.wav", toneWAV(time.Second), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		ID         string `json:"id"`
		Transcript string `json:"transcript"`
		Sentiment  struct {
			Label    string  `json:"label"`
			Compound float64 `json:"compound"`
		} `json:"sentiment"`
		Analysis struct {
			PrimaryEmotion string `json:"primary_emotion"`
			Topic          string `json:"topic"`
		} `json:"analysis"`
		Response string `json:"response"`
		Strategy string `json:"strategy"`
		Degraded bool   `json:"degraded"`
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Transcript != text || body.Sentiment.Label != "negative" || body.Sentiment.Compound >= 0 {
		t.Errorf("body = %+v", body)
	}
	if body.Strategy != "empathize" || body.Degraded {
		t.Errorf("strategy = %q, degraded = %v", body.Strategy, body.Degraded)
	}
	if !strings.HasPrefix(body.Response, "It sounds like you're feeling anxious about your presentation.") {
		t.Errorf("response = %q", body.Response)
	}
	if body.Analysis.PrimaryEmotion != "fear" || body.Analysis.Topic != "work" {
		t.Errorf("analysis = %+v", body.Analysis)
	}
	if body.AudioURL != "/replies/"+body.ID+".wav" {
		t.Fatalf("audio_url = %q, id = %q", body.AudioURL, body.ID)
	}

	audioRec := serve(h, httptest.NewRequest(http.MethodGet, body.AudioURL, nil))
	if audioRec.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", body.AudioURL, audioRec.Code)
	}
	if ct := audioRec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("reply Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(audioRec.Body.Bytes(), []byte("RIFF")) {
		t.Error("reply audio is not a WAV file")
	}
}

func TestAnalyze_NoReplyCacheOmitsAudioURL(t *testing.T) {
	t.Parallel()
	p := processorFunc(func(context.Context, []byte, audio.Format) (*turn.Turn, error) {
		return &turn.Turn{ID: "abc", Response: "hi", ReplyAudio: []byte("RIFF")}, nil
	})
	rec := serve(newServer(t, p), upload(t, "a.wav", toneWAV(time.Second), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "audio_url") {
		t.Errorf("body should not carry audio_url: %s", rec.Body)
	}
}

func TestAnalyze_MissingAudio(t *testing.T) {
	t.Parallel()
	h := newServer(t, failing(errors.New("must not be called")))

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"multipart without audio", upload(t, "", nil, map[string]string{"format": "wav"})},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"audio":"x"}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if msg, _ := decodeError(t, rec); msg != "No audio file uploaded" {
				t.Errorf("error = %q", msg)
			}
		})
	}
}

func TestAnalyze_FormatFields(t *testing.T) {
	t.Parallel()
	var (
		mu  sync.Mutex
		got audio.Format
		raw []byte
	)
	p := processorFunc(func(_ context.Context, r []byte, f audio.Format) (*turn.Turn, error) {
		mu.Lock()
		defer mu.Unlock()
		got, raw = f, r
		return &turn.Turn{ID: "x", Response: "ok"}, nil
	})
	h := newServer(t, p)

	pcm := []byte{1, 2, 3, 4}
	rec := serve(h, upload(t, "clip.raw", pcm, map[string]string{
		"format":      "pcm_s16le",
		"sample_rate": "8000",
		"channels":    "2",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	mu.Lock()
	defer mu.Unlock()
	want := audio.Format{Encoding: audio.EncodingPCM, SampleRate: 8000, Channels: 2}
	if got != want {
		t.Errorf("format = %+v, want %+v", got, want)
	}
	if !bytes.Equal(raw, pcm) {
		t.Errorf("raw = %v, want %v", raw, pcm)
	}
}

func TestAnalyze_DetectsWAV(t *testing.T) {
	t.Parallel()
	formats := make(chan audio.Format, 1)
	p := processorFunc(func(_ context.Context, _ []byte, f audio.Format) (*turn.Turn, error) {
		formats <- f
		return &turn.Turn{ID: "x", Response: "ok"}, nil
	})
	rec := serve(newServer(t, p), upload(t, "blob", toneWAV(100*time.Millisecond), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f := <-formats; f.Encoding != audio.EncodingWAV {
		t.Errorf("encoding = %q, want wav", f.Encoding)
	}
}

func TestAnalyze_BadFormField(t *testing.T) {
	t.Parallel()
	h := newServer(t, failing(errors.New("must not be called")))
	for _, fields := range []map[string]string{
		{"format": "mp3"},
		{"format": "pcm", "sample_rate": "fast"},
		{"format": "pcm", "sample_rate": "16000", "channels": "0"},
	} {
		rec := serve(h, upload(t, "a.raw", []byte{0, 0}, fields))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("fields %v: status = %d, want 400", fields, rec.Code)
		}
	}
}

func TestAnalyze_TooLarge(t *testing.T) {
	t.Parallel()
	h := newServer(t, failing(errors.New("must not be called")), server.WithMaxUploadBytes(512))
	rec := serve(h, upload(t, "big.wav", make([]byte, 4096), nil))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "invalid audio",
			err:        &turn.StageError{Stage: turn.StageIngest, TurnID: "t", Err: &audio.InvalidAudioError{Reason: "recording is empty"}},
			wantStatus: http.StatusBadRequest,
			wantDetail: "recording is empty",
		},
		{
			name:       "transcription unavailable",
			err:        &turn.StageError{Stage: turn.StageTranscribe, TurnID: "t", Err: stt.Unavailable("whisper", errors.New("connection refused"))},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "busy",
			err:        turn.ErrBusy,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "internal",
			err:        &turn.StageError{Stage: turn.StageClassify, TurnID: "t", Err: errors.New("inconsistent")},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newServer(t, failing(tt.err), server.WithRetryAfter(3*time.Second))
			rec := serve(h, upload(t, "a.wav", toneWAV(100*time.Millisecond), nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			msg, detail := decodeError(t, rec)
			if msg == "" {
				t.Error("empty error message")
			}
			if detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", detail, tt.wantDetail)
			}
			if errors.Is(tt.err, turn.ErrBusy) {
				if ra := rec.Header().Get("Retry-After"); ra != "3" {
					t.Errorf("Retry-After = %q, want 3", ra)
				}
			}
		})
	}
}

func TestAnalyze_TurnTimeout(t *testing.T) {
	t.Parallel()
	p := processorFunc(func(ctx context.Context, _ []byte, _ audio.Format) (*turn.Turn, error) {
		<-ctx.Done()
		return nil, &turn.StageError{Stage: turn.StageTranscribe, TurnID: "t", Err: ctx.Err()}
	})
	h := newServer(t, p, server.WithTurnTimeout(20*time.Millisecond))
	rec := serve(h, upload(t, "a.wav", toneWAV(100*time.Millisecond), nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestAnalyze_ClientGoneWritesNoBody(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	p := processorFunc(func(ctx context.Context, _ []byte, _ audio.Format) (*turn.Turn, error) {
		cancel()
		return nil, &turn.StageError{Stage: turn.StageRespond, TurnID: "t", Err: context.Canceled}
	})
	h := newServer(t, p)
	rec := serve(h, upload(t, "a.wav", toneWAV(100*time.Millisecond), nil).WithContext(ctx))
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want none", rec.Body)
	}
}

// ── other routes ──────────────────────────────────────────────────────────────

func TestReply_NotFound(t *testing.T) {
	t.Parallel()
	for _, opts := range [][]server.Option{nil, {server.WithReplyCache(2)}} {
		h := newServer(t, failing(nil), opts...)
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/replies/missing.wav", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	}
}

func TestReply_EvictsOldest(t *testing.T) {
	t.Parallel()
	var (
		mu sync.Mutex
		n  int
	)
	p := processorFunc(func(context.Context, []byte, audio.Format) (*turn.Turn, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return &turn.Turn{ID: string(rune('a' + n - 1)), Response: "ok", ReplyAudio: []byte("RIFF....WAVE")}, nil
	})
	h := newServer(t, p, server.WithReplyCache(2))
	for range 3 {
		if rec := serve(h, upload(t, "a.wav", toneWAV(100*time.Millisecond), nil)); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if rec := serve(h, httptest.NewRequest(http.MethodGet, "/replies/a.wav", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("oldest reply still cached: status %d", rec.Code)
	}
	if rec := serve(h, httptest.NewRequest(http.MethodGet, "/replies/c.wav", nil)); rec.Code != http.StatusOK {
		t.Errorf("newest reply missing: status %d", rec.Code)
	}
}

func TestRoutes_MetricsAndHealth(t *testing.T) {
	t.Parallel()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# HELP solace_turns_total\n")
	})
	h := newServer(t, failing(nil),
		server.WithMetricsHandler(metrics),
		server.WithHealth(health.New(health.Available("stt", func() bool { return true }, false))),
	)

	for _, path := range []string{"/metrics", "/healthz", "/readyz"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}

	bare := newServer(t, failing(nil))
	if rec := serve(bare, httptest.NewRequest(http.MethodGet, "/metrics", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler status = %d, want 404", rec.Code)
	}
}

func TestNew_NilProcessor(t *testing.T) {
	t.Parallel()
	if _, err := server.New(nil); err == nil {
		t.Fatal("expected error for nil processor")
	}
}
