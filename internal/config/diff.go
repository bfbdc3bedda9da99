package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when a field that is applied by rebuilding the
	// turn pipeline changed: audio limits, voice, sentiment, response
	// settings, or the turn admission bounds.
	PipelineChanged bool

	// RestartRequired names sections that changed but are only read at
	// startup, such as the listen address or provider credentials.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PipelineChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Hot-reloadable through a pipeline rebuild.
	if !reflect.DeepEqual(old.Audio, new.Audio) ||
		old.Voice != new.Voice ||
		old.Sentiment != new.Sentiment ||
		old.Response != new.Response ||
		old.Server.MaxConcurrentTurns != new.Server.MaxConcurrentTurns ||
		old.Server.QueueTimeout != new.Server.QueueTimeout {
		d.PipelineChanged = true
	}

	// Startup-only.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Server.MaxUploadBytes != new.Server.MaxUploadBytes {
		d.RestartRequired = append(d.RestartRequired, "server.max_upload_bytes")
	}
	if old.Server.TurnTimeout != new.Server.TurnTimeout {
		d.RestartRequired = append(d.RestartRequired, "server.turn_timeout")
	}
	if old.Server.ReplyCacheSize != new.Server.ReplyCacheSize {
		d.RestartRequired = append(d.RestartRequired, "server.reply_cache_size")
	}
	if !reflect.DeepEqual(old.Providers.STT, new.Providers.STT) {
		d.RestartRequired = append(d.RestartRequired, "providers.stt")
	}
	if !reflect.DeepEqual(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !reflect.DeepEqual(old.Providers.TTS, new.Providers.TTS) {
		d.RestartRequired = append(d.RestartRequired, "providers.tts")
	}
	if !reflect.DeepEqual(old.Observability, new.Observability) {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}

	return d
}
