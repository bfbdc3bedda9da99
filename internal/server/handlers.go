package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/internal/turn"
	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
)

// User-facing error messages. They are shown to the person recording, so
// they ask for an action rather than describe internals.
const (
	msgNoAudio     = "No audio file uploaded"
	msgBadForm     = "Invalid form field"
	msgTooLarge    = "The recording is too large, please send a shorter one"
	msgInvalid     = "We couldn't process that recording, please try recording again"
	msgUnavailable = "Speech recognition is temporarily unavailable, please try again shortly"
	msgBusy        = "We're helping a lot of people right now, please try again in a moment"
	msgTimeout     = "That took longer than expected, please try again"
	msgInternal    = "Something went wrong while processing your message"
)

// analyzeResponse is the JSON body of a successful POST /analyze.
type analyzeResponse struct {
	*turn.Turn

	// DurationMS is the processing time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// AudioURL points at the synthesized reply when one is available.
	AudioURL string `json:"audio_url,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// handleAnalyze processes one uploaded recording as a conversation turn.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return
		}
		log.Debug("server: unreadable upload", "err", err)
		writeError(w, http.StatusBadRequest, msgNoAudio, "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoAudio, "")
		return
	}
	raw, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoAudio, "")
		return
	}

	format, err := uploadFormat(r, header.Filename, header.Header.Get("Content-Type"), raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadForm, err.Error())
		return
	}

	tctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	t, err := s.proc.ProcessTurn(tctx, raw, format)
	if err != nil {
		s.writeTurnError(w, r, err)
		return
	}

	resp := analyzeResponse{Turn: t, DurationMS: t.Duration.Milliseconds()}
	if s.replies != nil && len(t.ReplyAudio) > 0 {
		s.replies.Add(t.ID, t.ReplyAudio)
		resp.AudioURL = "/replies/" + t.ID + ".wav"
	}
	log.Debug("server: turn answered",
		"turn_id", t.ID,
		"label", t.Sentiment.Label,
		"strategy", t.Strategy,
		"degraded", t.Degraded,
	)
	writeJSON(w, http.StatusOK, resp)
}

// uploadFormat resolves the audio format from the optional form fields,
// falling back to detection from the file itself.
func uploadFormat(r *http.Request, filename, contentType string, raw []byte) (audio.Format, error) {
	var f audio.Format
	if v := strings.TrimSpace(r.FormValue("format")); v != "" {
		enc, err := audio.ParseEncoding(v)
		if err != nil {
			return f, err
		}
		f.Encoding = enc
	} else if detected, ok := audio.DetectFormat(filename, contentType, raw); ok {
		f = detected
	}
	if v := strings.TrimSpace(r.FormValue("sample_rate")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("sample_rate must be a positive integer")
		}
		f.SampleRate = n
	}
	if v := strings.TrimSpace(r.FormValue("channels")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("channels must be a positive integer")
		}
		f.Channels = n
	}
	return f, nil
}

// writeTurnError maps a ProcessTurn error to an HTTP response.
func (s *Server) writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	log := observe.Logger(r.Context())
	var iae *audio.InvalidAudioError

	switch {
	case r.Context().Err() != nil:
		// The client went away; nobody is left to read a body.
		log.Debug("server: turn abandoned by client", "stage", turn.StageOf(err))
	case errors.Is(err, turn.ErrBusy):
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter.Round(time.Second)/time.Second)))
		writeError(w, http.StatusServiceUnavailable, msgBusy, "")
	case errors.As(err, &iae):
		writeError(w, http.StatusBadRequest, msgInvalid, iae.Reason)
	case stt.IsUnavailable(err):
		log.Warn("server: transcription unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, msgUnavailable, "")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("server: turn timed out", "stage", turn.StageOf(err), "timeout", s.turnTimeout)
		writeError(w, http.StatusGatewayTimeout, msgTimeout, "")
	default:
		log.Error("server: turn failed", "stage", turn.StageOf(err), "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal, "")
	}
}

// handleReply serves the synthesized audio of a recent turn.
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.replies == nil {
		writeError(w, http.StatusNotFound, "Reply audio not found", "")
		return
	}
	wav, ok := s.replies.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Reply audio not found", "")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, id+".wav", time.Time{}, bytes.NewReader(wav))
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
