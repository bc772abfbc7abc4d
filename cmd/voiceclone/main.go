package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/dgnsrekt/voiceclone-go/internal/api"
	"github.com/dgnsrekt/voiceclone-go/internal/artifacts"
	"github.com/dgnsrekt/voiceclone-go/internal/audio"
	"github.com/dgnsrekt/voiceclone-go/internal/clone"
	"github.com/dgnsrekt/voiceclone-go/internal/config"
	"github.com/dgnsrekt/voiceclone-go/internal/logging"
	"github.com/dgnsrekt/voiceclone-go/internal/model"
	"github.com/dgnsrekt/voiceclone-go/internal/storage"
)

const version = "0.1.0"

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to an optional YAML config file; environment variables override it")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("voiceclone", version)
		return
	}

	// Load configuration from file and environment
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting voiceclone", "version", version)

	if !cfg.AuthDisabled() {
		logger.Info("HTTP bearer authentication enabled for /generate")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"model_backend", cfg.ModelBackend,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"normalize_references", cfg.NormalizeReferences,
		"mirror_enabled", cfg.MirrorEnabled(),
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	layout, err := storage.NewLayout(cfg.DataDir)
	if err != nil {
		logger.Error("failed to resolve data directory", "error", err)
		os.Exit(1)
	}
	if err := layout.Ensure(); err != nil {
		logger.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	// Open the model backend
	registry := model.NewDefaultRegistry()
	backend, err := registry.Open(cfg.ModelBackend, model.Options{
		URL:     cfg.ModelURL,
		Timeout: cfg.ModelTimeout,
		Command: cfg.ModelCommand,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to open model backend", "backend", cfg.ModelBackend, "available", registry.List(), "error", err)
		os.Exit(1)
	}
	logger.Info("model backend ready", "backend", backend.Name())

	if hc, ok := backend.(healthChecker); ok {
		checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := hc.HealthCheck(checkCtx); err != nil {
			logger.Warn("model backend health check failed", "error", err)
		}
		checkCancel()
	}

	opts := clone.Options{
		Model:  backend,
		Layout: layout,
		Preset: clone.Preset{
			Speaker:       cfg.TTSSpeaker,
			Language:      cfg.TTSLanguage,
			Speed:         cfg.TTSSpeed,
			Message:       cfg.WatermarkMessage,
			DefaultSEPath: cfg.DefaultSEPath,
		},
		Logger: logger,
	}

	// Initialize audio converter
	if cfg.NormalizeReferences {
		conv, err := audio.NewConverter(cfg.FFmpegPath)
		if err != nil {
			logger.Warn("ffmpeg not available, reference normalization disabled", "error", err)
		} else {
			opts.Normalizer = conv
		}
	}

	// Connect the artifact mirror
	if cfg.MirrorEnabled() {
		mirror, err := artifacts.Connect(cfg.NATSURL, cfg.ArtifactBucket, logger)
		if err != nil {
			logger.Warn("artifact mirror unavailable", "url", cfg.NATSURL, "error", err)
		} else {
			defer mirror.Close()
			opts.Artifacts = mirror
			logger.Info("artifact mirror connected", "bucket", mirror.Bucket())
		}
	}

	service, err := clone.NewService(opts)
	if err != nil {
		logger.Error("failed to create clone service", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clone.RegisterMetrics(reg)
	api.RegisterMetrics(reg)

	// Load the models before accepting traffic
	service.WarmUp(ctx, cfg.WarmupAudio)

	// Create and start HTTP server
	server := api.New(cfg, logger, service, layout, reg)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}
