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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/catalogsearch/internal/transport/chi"
	"github.com/kailas-cloud/catalogsearch/internal/version"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(parent context.Context, c *cli) error {
	cfg, logger := c.cfg, c.logger
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting catalogsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", c.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_backend", cfg.Vector.Backend),
	)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Background startup indexing; never blocks startup.
	indexCtx, cancelIndex := context.WithCancel(context.Background())
	defer cancelIndex()
	var indexDone <-chan struct{}
	if cfg.Indexing.IndexOnStartup {
		indexDone = a.indexer.StartBackground(indexCtx)
	}

	server := chiTransport.NewServer(chiTransport.Dependencies{
		Search:  a.search,
		Indexer: a.indexer,
		Catalog: a.catalog,
		Health:  a.health,
		AI:      a.breaker,
		Budget:  budgetReader(a),
	}, chiTransport.Config{
		DefaultLimit:     cfg.Search.DefaultTopK,
		DefaultThreshold: &cfg.Search.DefaultThreshold,
	}, logger.Named("http"))

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.NotFound(jsonStatus(http.StatusNotFound, "not_found", "route not found"))
	r.MethodNotAllowed(jsonStatus(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed"))
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "catalogsearch"),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	cancelIndex()
	if indexDone != nil {
		select {
		case <-indexDone:
		case <-shutdownCtx.Done():
			logger.Warn("Startup indexing did not stop before shutdown timeout")
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// budgetReader returns a nil interface when no budget is configured.
func budgetReader(a *app) chiTransport.BudgetReader {
	if a.budget == nil {
		return nil
	}
	return a.budget
}
