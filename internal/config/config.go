// Package config provides the configuration schema, loader, and provider registry
// for the Solace voice support service.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the Solace server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResponseMode selects how reply text is produced.
type ResponseMode string

const (
	// ResponseTemplate renders deterministic templated replies only.
	ResponseTemplate ResponseMode = "template"

	// ResponseLLM asks the configured LLM and falls back to templates on
	// failure.
	ResponseLLM ResponseMode = "llm"
)

// IsValid reports whether m is a recognised response mode.
func (m ResponseMode) IsValid() bool {
	return m == ResponseTemplate || m == ResponseLLM
}

// Config is the root configuration structure for Solace.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Voice         VoiceConfig         `yaml:"voice"`
	Sentiment     SentimentConfig     `yaml:"sentiment"`
	Response      ResponseConfig      `yaml:"response"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds network, logging and turn-admission settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxUploadBytes bounds the size of an uploaded recording.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxConcurrentTurns bounds how many turns are processed at once.
	MaxConcurrentTurns int `yaml:"max_concurrent_turns"`

	// TurnTimeout bounds the total processing time of one turn.
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// QueueTimeout bounds how long a turn waits for a free slot before the
	// request is rejected as busy. Zero waits for the whole turn timeout.
	QueueTimeout time.Duration `yaml:"queue_timeout"`

	// ReplyCacheSize is the number of synthesized replies kept in memory for
	// GET /replies/{id}.wav.
	ReplyCacheSize int `yaml:"reply_cache_size"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig bounds accepted recordings.
type AudioConfig struct {
	// MaxDuration is the inclusive upper bound on recording length.
	MaxDuration time.Duration `yaml:"max_duration"`

	// SilenceRMS is the energy (in 16-bit sample units) below which the
	// whisper backends report a recording as unintelligible without
	// transcribing it. Nil keeps the backend default; zero disables the gate.
	SilenceRMS *float64 `yaml:"silence_rms"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open. Fallback entries may not declare fallbacks themselves.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// VoiceConfig specifies the TTS voice used for spoken replies.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// SentimentConfig tunes the classifier.
type SentimentConfig struct {
	// PhoneticMatching resolves misrecognized words to lexicon entries that
	// sound alike.
	PhoneticMatching bool `yaml:"phonetic_matching"`
}

// ResponseConfig controls reply generation.
type ResponseConfig struct {
	// Mode selects templated or LLM replies. Defaults to llm when an LLM
	// provider is configured and template otherwise.
	Mode ResponseMode `yaml:"mode"`

	// Temperature is the LLM sampling temperature in [0, 2].
	Temperature float64 `yaml:"temperature"`

	// MaxTokens bounds the length of an LLM reply.
	MaxTokens int `yaml:"max_tokens"`

	// FallbackMessage replaces the templated reply when the LLM fails.
	// Empty keeps the template.
	FallbackMessage string `yaml:"fallback_message"`
}

// ObservabilityConfig controls metrics and tracing.
type ObservabilityConfig struct {
	// MetricsEnabled exposes /metrics. Nil means enabled.
	MetricsEnabled *bool `yaml:"metrics_enabled"`

	// TraceSampleRatio is the fraction of root traces to sample in (0, 1].
	// Zero samples everything.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// Metrics reports whether the /metrics endpoint should be served.
func (o ObservabilityConfig) Metrics() bool {
	return o.MetricsEnabled == nil || *o.MetricsEnabled
}
