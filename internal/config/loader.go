package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr         = ":8080"
	DefaultMaxUploadBytes     = 10 << 20
	DefaultMaxConcurrentTurns = 8
	DefaultTurnTimeout        = 30 * time.Second
	DefaultQueueTimeout       = 5 * time.Second
	DefaultReplyCacheSize     = 128
	DefaultMaxDuration        = 60 * time.Second
	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 200
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native", "openai"},
	"tts": {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references, decodes a YAML config from r,
// fills defaults and validates the result. Unknown keys are rejected.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} with values from the
// environment. Unset variables without a default expand to "". A bare $VAR
// is left untouched so secrets containing '$' survive.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(sub[1])); ok && v != "" {
			return []byte(v)
		}
		return sub[2]
	})
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if s.MaxConcurrentTurns == 0 {
		s.MaxConcurrentTurns = DefaultMaxConcurrentTurns
	}
	if s.TurnTimeout == 0 {
		s.TurnTimeout = DefaultTurnTimeout
	}
	if s.QueueTimeout == 0 {
		s.QueueTimeout = DefaultQueueTimeout
	}
	if s.ReplyCacheSize == 0 {
		s.ReplyCacheSize = DefaultReplyCacheSize
	}

	if cfg.Audio.MaxDuration == 0 {
		cfg.Audio.MaxDuration = DefaultMaxDuration
	}

	r := &cfg.Response
	if r.Mode == "" {
		r.Mode = ResponseTemplate
		if cfg.Providers.LLM.Name != "" {
			r.Mode = ResponseLLM
		}
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	s := cfg.Server
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", s.LogLevel))
	}
	if s.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", s.MaxUploadBytes))
	}
	if s.MaxConcurrentTurns < 0 {
		errs = append(errs, fmt.Errorf("server.max_concurrent_turns %d must not be negative", s.MaxConcurrentTurns))
	}
	if s.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.turn_timeout %s must not be negative", s.TurnTimeout))
	}
	if s.QueueTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.queue_timeout %s must not be negative", s.QueueTimeout))
	}
	if s.ReplyCacheSize < 0 {
		errs = append(errs, fmt.Errorf("server.reply_cache_size %d must not be negative", s.ReplyCacheSize))
	}
	if s.TLS != nil && (s.TLS.CertFile == "" || s.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Audio
	if cfg.Audio.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("audio.max_duration %s must not be negative", cfg.Audio.MaxDuration))
	}
	if rms := cfg.Audio.SilenceRMS; rms != nil && (*rms < 0 || *rms > 32767) {
		errs = append(errs, fmt.Errorf("audio.silence_rms %.1f is out of range [0, 32767]", *rms))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	errs = append(errs, validateEntry("stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("tts", cfg.Providers.TTS)...)

	// Voice
	if f := cfg.Voice.SpeedFactor; f != 0 && (f < 0.5 || f > 2.0) {
		errs = append(errs, fmt.Errorf("voice.speed_factor %.2f is out of range [0.5, 2.0]", f))
	}
	if cfg.Providers.TTS.Name != "" && cfg.Voice.VoiceID == "" {
		slog.Warn("providers.tts is configured but voice.voice_id is empty; the provider default voice is used")
	}

	// Response
	r := cfg.Response
	if r.Mode != "" && !r.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("response.mode %q is invalid; valid values: template, llm", r.Mode))
	}
	if r.Mode == ResponseLLM && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("response.mode llm requires providers.llm to be configured"))
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		errs = append(errs, fmt.Errorf("response.temperature %.2f is out of range [0, 2]", r.Temperature))
	}
	if r.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("response.max_tokens %d must not be negative", r.MaxTokens))
	}

	// Observability
	if ratio := cfg.Observability.TraceSampleRatio; ratio < 0 || ratio > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_ratio %.2f is out of range [0, 1]", ratio))
	}

	return errors.Join(errs...)
}

// validateEntry checks a provider entry and its fallbacks.
func validateEntry(kind string, e ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, e.Name)
	if e.Name == "" && len(e.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s declares fallbacks without a primary name", kind))
	}
	for i, fb := range e.Fallbacks {
		prefix := fmt.Sprintf("providers.%s.fallbacks[%d]", kind, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s must not declare nested fallbacks", prefix))
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
