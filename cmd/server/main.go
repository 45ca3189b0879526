// Command server runs the Zelfhosted HTTP API: configuration from the
// environment, a tool registry, a model adapter, the orchestration graph and
// a chi router with graceful shutdown.
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

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/zelfhosted/server/config"
	"github.com/zelfhosted/server/graph"
	"github.com/zelfhosted/server/httpapi"
	"github.com/zelfhosted/server/logging"
	"github.com/zelfhosted/server/model"
	anthropicmodel "github.com/zelfhosted/server/model/anthropic"
	openaimodel "github.com/zelfhosted/server/model/openai"
	"github.com/zelfhosted/server/tools"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
		Component: "server",
	})

	registry := tools.DefaultRegistry(tools.Config{
		YouTubeAPIKey:       cfg.YouTubeAPIKey,
		SpotifyClientID:     cfg.SpotifyClientID,
		SpotifyClientSecret: cfg.SpotifyClientSecret,
		TwitterAPIKey:       cfg.TwitterAPIKey,
		TwitterAPISecret:    cfg.TwitterAPISecret,
		TwitterAccessToken:  cfg.TwitterAccessToken,
		TwitterAccessSecret: cfg.TwitterAccessSecret,
	})

	m, err := buildModel(cfg)
	if err != nil {
		return err
	}
	logger.Info("model configured", "provider", m.Info().Provider, "model", m.Info().Name)

	g := graph.New(m, registry, func(o *graph.Options) {
		o.Logger = logger.WithComponent("graph")
		o.MaxIterations = cfg.MaxIterations
		o.MaxSupervisorTurns = cfg.MaxSupervisorTurns
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(g, logger.WithComponent("httpapi")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildModel selects the generation backend from configuration.
func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openaimodel.New(func(o *openaimodel.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case "anthropic":
		return anthropicmodel.New(func(o *anthropicmodel.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropic.Model(cfg.ModelName)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}
