package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/avqqc/internal/api"
	"github.com/MikeSquared-Agency/avqqc/internal/config"
	"github.com/MikeSquared-Agency/avqqc/internal/hermes"
	"github.com/MikeSquared-Agency/avqqc/internal/processor"
	"github.com/MikeSquared-Agency/avqqc/internal/slack"
	"github.com/MikeSquared-Agency/avqqc/internal/store"
)

func main() {
	file := flag.String("file", "", "check a single transcript and print the record without storing it")
	once := flag.Bool("once", false, "run one pass over the configured studies and exit")
	migrate := flag.Bool("migrate", false, "apply the database schema before starting")
	flag.Parse()

	envErr := godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel, logOutput(*file != ""))

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", envErr)
	}
	if cfg.ConfigFile != "" {
		if err := cfg.ApplyFile(cfg.ConfigFile); err != nil {
			slog.Error("failed to load config file", "path", cfg.ConfigFile, "error", err)
			os.Exit(1)
		}
	}

	if *file != "" {
		os.Exit(checkFile(*file))
	}

	slog.Info("avqqc starting", "port", cfg.Port, "studies", cfg.Studies)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	if *migrate {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("schema applied")
	}

	// Slack poster (optional; run summaries are skipped without it)
	var notifier processor.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without run summaries")
	}

	snooze := time.Duration(cfg.SnoozeSeconds) * time.Second

	var state *processor.RunState
	if cfg.StateFile != "" {
		state, err = processor.LoadState(cfg.StateFile)
		if err != nil {
			slog.Error("failed to load runner state", "path", cfg.StateFile, "error", err)
			os.Exit(1)
		}
		slog.Info("runner state loaded", "path", cfg.StateFile, "failed", len(state.Failed))
	}
	newRunner := func(proc *processor.Processor, every time.Duration) *processor.Runner {
		r := processor.NewRunner(proc, db, cfg.Studies, every, notifier, slog.Default())
		if state != nil {
			r.WithState(state)
		}
		return r
	}

	if *once {
		proc := processor.New(db, nil, slog.Default())
		runner := newRunner(proc, 0)
		n, err := runner.RunOnce(ctx)
		if err != nil {
			slog.Error("quick qc pass failed", "processed", n, "error", err)
			os.Exit(1)
		}
		slog.Info("quick qc pass done", "processed", n)
		return
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	proc := processor.New(db, hermesClient, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectTranscriptImported, proc.HandleTranscriptImported); err != nil {
		slog.Error("failed to subscribe to transcript events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, db, slog.Default())
	srv.AddCheck("database", db.Ping)
	srv.AddCheck("nats", func(context.Context) error {
		if !hermesClient.Connected() {
			return errors.New("not connected")
		}
		return nil
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish(hermes.SubjectAgentRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"module":    processor.ModuleName,
		"studies":   cfg.Studies,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	if len(cfg.Studies) > 0 {
		runner := newRunner(proc, snooze)
		go func() {
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("quick qc runner stopped", "error", err)
			}
		}()
	} else {
		slog.Warn("no studies configured, only handling transcript events")
	}

	slog.Info("avqqc ready", "port", cfg.Port)

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	slog.Info("avqqc stopped")
}

// checkFile runs the quick QC on one transcript and prints the record.
func checkFile(path string) int {
	return writeRecord(path, os.Stdout, slog.Default())
}

func writeRecord(path string, out io.Writer, logger *slog.Logger) int {
	proc := processor.New(nil, nil, logger)
	rec, err := proc.Analyze(path)
	if err != nil {
		logger.Error("transcript quick qc failed", "transcript", path, "error", err)
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("failed to encode record", "error", err)
		return 1
	}
	return 0
}

// logOutput keeps stdout free for the record in -file mode.
func logOutput(fileMode bool) io.Writer {
	if fileMode {
		return os.Stderr
	}
	return os.Stdout
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
