package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/itsirevo-dev/pulse-proxy-backend/config"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/httpapi"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/notify"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/storage"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/upstream"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/application/pulse"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "fetch one pulse, print it and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "with -once, print full tables (default: compact 1-line per category)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("pulse proxy starting",
		"config", *configPath,
		"addr", cfg.Server.Addr,
		"cache_ttl", cfg.CacheTTL(),
		"serve_stale", cfg.ServeStale(),
		"archive", cfg.Storage.DSN != "",
		"once", *once,
	)

	strategies, err := buildStrategies(cfg)
	if err != nil {
		slog.Error("invalid upstream strategies", "err", err)
		os.Exit(1)
	}
	client := upstream.NewClient(upstream.Options{
		Strategies:       strategies,
		DexScreenerBase:  cfg.Upstream.DexScreenerBase,
		UserAgent:        cfg.Upstream.UserAgent,
		Timeout:          cfg.UpstreamTimeout(),
		RatePerSec:       cfg.Upstream.RatePerSecond,
		Burst:            cfg.Upstream.Burst,
		LookupRatePerSec: cfg.Upstream.LookupRatePerSecond,
		LookupBurst:      cfg.Upstream.LookupBurst,
		PreviewBytes:     cfg.Upstream.PreviewBytes,
		MaxBodyBytes:     cfg.Upstream.MaxBodyBytes,
	})

	// el archivo no hace falta para -once
	var store *storage.SQLiteStorage
	if cfg.Storage.DSN != "" && !*once {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN, cfg.Retention())
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	svc := newService(cfg, client, store)
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := runOnce(ctx, svc, notify.NewConsole(*table)); err != nil {
			slog.Error("pulse failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, svc); err != nil {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("pulse proxy stopped cleanly")
}

func newService(cfg *config.Config, client *upstream.Client, store *storage.SQLiteStorage) *pulse.Service {
	var fallback pulse.FallbackPolicy = pulse.NoFallback{}
	if cfg.ServeStale() {
		fallback = pulse.StaleFallback{}
	}
	cache := pulse.NewCache(cfg.CacheTTL(), nil)
	coalescer := pulse.NewCoalescer(client, cache, fallback, cfg.RefreshTimeout())

	// un *SQLiteStorage nil no puede llegar al servicio como interfaz no-nil
	var archive ports.SnapshotStorage
	if store != nil {
		archive = store
	}
	return pulse.NewService(pulse.Config{
		TargetSize: cfg.Categories.TargetSize,
		Classifier: classifierConfig(cfg),
		Picker:     buildPicker(cfg),
	}, coalescer, client, archive)
}

func runOnce(ctx context.Context, svc *pulse.Service, notifier ports.Notifier) error {
	p, err := svc.GetPulse(ctx)
	if err != nil {
		return err
	}
	return notifier.NotifyPulse(ctx, p)
}

func serve(ctx context.Context, cfg *config.Config, svc *pulse.Service) error {
	api := httpapi.NewServer(svc, httpapi.Options{
		CORSOrigin: cfg.Server.CORSOrigin,
		RetryAfter: cfg.CacheTTL(),
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
