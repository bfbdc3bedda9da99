// Command solace is the entry point for the Solace voice support server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrWong99/solace/internal/app"
	"github.com/MrWong99/solace/internal/config"
	"github.com/MrWong99/solace/internal/observe"
	"github.com/MrWong99/solace/pkg/audio"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "solace",
		Short:         "Emotional support voice chat server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is normal outside development.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config is read")

	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newProvidersCmd(), newVersionCmd())
	return root
}

// ── serve ─────────────────────────────────────────────────────────────────────

func newServeCmd() *cobra.Command {
	var configPath string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, watch)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&watch, "watch", true, "apply config file changes while running")
	return cmd
}

func serve(ctx context.Context, configPath string, watch bool) error {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("solace starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		SampleRatio:    cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg, observe.DefaultMetrics())
	if err != nil {
		return err
	}
	printStartupSummary(cfg)

	opts := []app.Option{app.WithLogLevel(level)}
	if watch {
		opts = append(opts, app.WithConfigWatch(configPath))
	}
	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		_ = providers.Close()
		return err
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")
	return runErr
}

// ── analyze ───────────────────────────────────────────────────────────────────

func newAnalyzeCmd() *cobra.Command {
	var configPath, format, outPath string
	cmd := &cobra.Command{
		Use:   "analyze <recording>",
		Short: "Process one recording as a conversation turn and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyze(cmd.Context(), configPath, args[0], format, outPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&format, "format", "", "audio encoding (wav, pcm_s16le, opus); detected from the file when empty")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the synthesized reply to this WAV file")
	return cmd
}

func analyze(ctx context.Context, configPath, recording, format, outPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.LogLevel.SlogLevel()})))

	raw, err := os.ReadFile(recording)
	if err != nil {
		return err
	}
	f, err := recordingFormat(recording, format, raw)
	if err != nil {
		return err
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := app.BuildProviders(cfg, reg, observe.DefaultMetrics())
	if err != nil {
		return err
	}
	application, err := app.New(cfg, providers)
	if err != nil {
		_ = providers.Close()
		return err
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(ctx, cfg.Server.TurnTimeout)
	defer cancel()
	t, err := application.ProcessTurn(ctx, raw, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return err
	}
	if outPath != "" && len(t.ReplyAudio) > 0 {
		if err := os.WriteFile(outPath, t.ReplyAudio, 0o644); err != nil {
			return err
		}
		slog.Info("reply audio written", "path", outPath, "bytes", len(t.ReplyAudio))
	}
	return nil
}

// recordingFormat resolves the encoding from the flag or the file itself.
func recordingFormat(path, flagValue string, raw []byte) (audio.Format, error) {
	if flagValue != "" {
		enc, err := audio.ParseEncoding(flagValue)
		if err != nil {
			return audio.Format{}, err
		}
		return audio.Format{Encoding: enc}, nil
	}
	if f, ok := audio.DetectFormat(filepath.Base(path), "", raw); ok {
		return f, nil
	}
	return audio.Format{}, fmt.Errorf("cannot detect the encoding of %s, pass --format", path)
}

// ── providers / version ───────────────────────────────────────────────────────

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the built-in provider names per kind",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			for _, kind := range []string{"stt", "llm", "tts"} {
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s %v\n", kind, reg.Names(kind))
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "solace", version)
		},
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", path)
	}
	return cfg, err
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Solace: startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT)
	printProvider("LLM", cfg.Providers.LLM)
	printProvider("TTS", cfg.Providers.TTS)
	fmt.Printf("║  Replies         : %-19s ║\n", cfg.Response.Mode)
	fmt.Printf("║  Max turns       : %-19d ║\n", cfg.Server.MaxConcurrentTurns)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind string, e config.ProviderEntry) {
	value := e.Name
	switch {
	case value == "":
		value = "(not configured)"
	case e.Model != "":
		value = e.Name + " / " + e.Model
	}
	if n := len(e.Fallbacks); n > 0 && e.Name != "" {
		value = fmt.Sprintf("%s +%d", value, n)
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
