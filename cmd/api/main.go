package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/adapters/http"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/bootstrap"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/config"
	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/observability/logging"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("steward-api", cfg.LogLevel))
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		slog.Warn("env_file_not_loaded", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	deps := httpadapter.Dependencies{
		Steward:  app.Steward,
		Streamer: app.Providers,
		Actions:  app.Actions,
		Drafter:  app.Communications,
		Triager:  app.Maintenance,
		Health:   app.Providers,
		Metrics:  app.Metrics,
	}
	if app.MCP != nil {
		deps.MCP = app.MCP.Handler()
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpadapter.NewRouter(cfg, deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout*time.Duration(max(cfg.StewardMaxToolSteps, 1)) + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
