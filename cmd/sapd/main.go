// Package main is the soft AP daemon entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radio-control/sapd/internal/api"
	"github.com/radio-control/sapd/internal/audit"
	"github.com/radio-control/sapd/internal/auth"
	"github.com/radio-control/sapd/internal/config"
	"github.com/radio-control/sapd/internal/hal"
	"github.com/radio-control/sapd/internal/hal/fake"
	"github.com/radio-control/sapd/internal/telemetry"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to sapd.yaml (default: ./sapd.yaml if present)")
	logDir := flag.String("log-dir", "logs", "directory for the audit log")
	flag.Parse()

	// Local .env files are a convenience for development; absence is fine.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*configPath, *logDir, log); err != nil {
		log.Fatal("sapd exited with error", zap.Error(err))
	}
}

func run(configPath, logDir string, log *zap.Logger) error {
	log.Info("starting sapd", zap.String("version", version))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	driver, err := buildDriver(cfg)
	if err != nil {
		return err
	}

	var verifier *auth.Verifier
	if cfg.Auth.Secret != "" {
		verifier, err = auth.NewVerifier(cfg.Auth.Secret)
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
	} else {
		log.Warn("auth secret not configured, API is unauthenticated")
	}

	auditLog, err := audit.NewLogger(logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	defer auditLog.Close()

	hub := telemetry.NewHub(cfg.Timing.HeartbeatInterval, log)
	defer hub.Close()

	session := api.NewSession(driver, cfg, hub, auditLog, nil, log)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(session, hub, verifier, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Listen))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	// Bring the access point down before closing the listener so clients
	// observe a clean stop event.
	if err := session.Stop("system"); err != nil && !errors.Is(err, api.ErrNotRunning) {
		log.Warn("failed to stop access point during shutdown", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	log.Info("sapd shutdown complete")
	return nil
}

func buildDriver(cfg *config.Config) (hal.Driver, error) {
	switch cfg.Driver.Kind {
	case "fake":
		return &fake.Driver{}, nil
	default:
		return nil, fmt.Errorf("unknown driver kind %q", cfg.Driver.Kind)
	}
}
