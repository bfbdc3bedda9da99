// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// live WebSocket API. It implements the stt.Provider interface.
//
// A recording is streamed to the socket in real-time-sized chunks, followed by
// a CloseStream control message. Deepgram then flushes its remaining results
// and closes the connection; every final result received until then is joined
// into the transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/solace/pkg/audio"
	"github.com/MrWong99/solace/pkg/provider/stt"
	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	providerName = "deepgram"

	// chunkBytes is 100 ms of 16 kHz mono int16 audio.
	chunkBytes = 3200
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests and for
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams the recording to Deepgram and collects the final results.
// The connection is always released before Transcribe returns.
func (p *Provider) Transcribe(ctx context.Context, payload *audio.Payload) (stt.Transcript, error) {
	wsURL, err := p.buildURL(payload.SampleRate, payload.Channels)
	if err != nil {
		return stt.Transcript{}, stt.Unavailable(providerName, fmt.Errorf("build URL: %w", err))
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, stt.Classify(ctx, providerName, fmt.Errorf("dial: %w", err))
	}
	defer conn.CloseNow()

	var acc accumulator
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writeAudio(gctx, conn, payload.PCM) })
	g.Go(func() error { return readResults(gctx, conn, &acc) })
	if err := g.Wait(); err != nil {
		return stt.Transcript{}, stt.Classify(ctx, providerName, err)
	}

	text := acc.text()
	if text == "" {
		return stt.Transcript{}, stt.Unintelligible(providerName, nil)
	}
	return stt.Transcript{
		Text:       text,
		Confidence: acc.confidence(),
		Language:   p.language,
		Duration:   payload.Duration,
	}, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the payload format.
func (p *Provider) buildURL(sampleRate, channels int) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	if channels > 0 {
		q.Set("channels", strconv.Itoa(channels))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// writeAudio sends pcm as binary frames followed by CloseStream.
func writeAudio(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for off := 0; off < len(pcm); off += chunkBytes {
		end := min(off+chunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("write CloseStream: %w", err)
	}
	return nil
}

// readResults consumes server messages until Deepgram signals the end of the
// stream with a Metadata message or a normal close.
func readResults(ctx context.Context, conn *websocket.Conn, acc *accumulator) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		resp, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		switch resp.Type {
		case "Metadata":
			return nil
		case "Error":
			return fmt.Errorf("server error: %s", resp.Description)
		case "Results":
			if resp.IsFinal && len(resp.Channel.Alternatives) > 0 {
				alt := resp.Channel.Alternatives[0]
				acc.add(alt.Transcript, alt.Confidence)
			}
		}
	}
}

// ---- response parsing ----

// deepgramResponse mirrors the subset of Deepgram's live messages we consume.
type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	Description string `json:"description,omitempty"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramResponse decodes a raw Deepgram WebSocket message. Returns
// false if the message is not valid JSON.
func parseDeepgramResponse(data []byte) (deepgramResponse, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return deepgramResponse{}, false
	}
	return resp, true
}

// accumulator joins final segments. Only readResults writes to it, and it is
// read after the errgroup has finished.
type accumulator struct {
	parts []string
	conf  float64
}

func (a *accumulator) add(text string, confidence float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.parts = append(a.parts, text)
	a.conf += confidence
}

func (a *accumulator) text() string { return strings.Join(a.parts, " ") }

func (a *accumulator) confidence() float64 {
	if len(a.parts) == 0 {
		return 0
	}
	return a.conf / float64(len(a.parts))
}
