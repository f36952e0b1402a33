package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsite/pkg/config"
	"finsite/pkg/logger"
	"finsite/pkg/tracing"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// startupTimeout bounds the storage connection attempt at boot
const startupTimeout = 15 * time.Second

// configPaths are probed in order; FINSITE_CONFIG wins when set
var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/finsite/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, string, error) {
	paths := configPaths
	if p := os.Getenv("FINSITE_CONFIG"); p != "" {
		paths = []string{p}
	}

	var lastErr error
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(path)
		if err != nil {
			lastErr = err
			continue
		}
		return cfg, path, nil
	}
	if lastErr != nil {
		return nil, "", lastErr
	}

	// No file anywhere: defaults plus environment
	cfg, err := config.Load("")
	return cfg, "", err
}

func main() {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if cfgPath != "" {
		log.Infow("configuration loaded", "path", cfgPath, "environment", cfg.Site.Environment)
	} else {
		log.Infow("no configuration file found, using defaults", "environment", cfg.Site.Environment)
	}

	if err := run(cfg, zapLogger); err != nil {
		log.Errorw("finsite server stopped with error", "error", err)
		zapLogger.Sync()
		os.Exit(1)
	}
	log.Info("finsite server stopped")
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Site.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("tracing disabled, exporter could not start", "error", err)
		tp = &tracing.TracerProvider{}
	}

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	a := newApp(startCtx, cfg, zapLogger)
	cancelStart()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("starting finsite server",
			"address", cfg.Server.Address,
			"environment", cfg.Site.Environment,
			"static_export", cfg.Site.StaticExport,
			"storage", a.repos.Backend(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.bus.Run(gctx); err != nil {
			log.Warnw("alert broadcast disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.runRetention(gctx)
	})
	if a.backups != nil {
		g.Go(func() error {
			return a.backups.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down finsite server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown
		a.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error during server shutdown", "error", err)
			srv.Close()
		}
		a.close(shutdownCtx)

		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("error flushing traces", "error", err)
		}
		return nil
	})

	return g.Wait()
}
