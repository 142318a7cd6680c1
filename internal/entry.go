// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/starford/ofmock/internal/api"
	"github.com/starford/ofmock/internal/catalog"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/grpcserver"
	"github.com/starford/ofmock/internal/mcpserver"
	"github.com/starford/ofmock/internal/mockservice"
	"github.com/starford/ofmock/internal/sse"
	"github.com/starford/ofmock/internal/storage"
)

// components are the pieces shared by every command.
type components struct {
	src storage.Provider
	db  *catalog.DB
	svc *mockservice.Service
}

func (c *components) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// setup opens the contracts directory, optionally the SQLite catalog, and
// builds a mock service with the contracts loaded.
func setup(ctx context.Context, cfg *Config, logger *slog.Logger, withCatalog bool, extra ...mockservice.Option) (*components, error) {
	if err := os.MkdirAll(cfg.Contracts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create contracts dir: %w", err)
	}
	src, err := storage.NewFS(cfg.Contracts.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &components{src: src}
	opts := []mockservice.Option{
		mockservice.WithLogger(logger),
		mockservice.WithSource(src),
		mockservice.WithLimits(cfg.Generation.Limits()),
	}

	if withCatalog {
		db, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w", err)
		}
		c.db = db
		if err := catalog.Sync(db, src, logger); err != nil {
			logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
		}
		opts = append(opts, mockservice.WithCatalog(db))
	}

	graph, err := cfg.Correlation.Graph()
	if err != nil {
		c.Close()
		return nil, err
	}
	genOpts, err := cfg.Generation.GeneratorOptions(logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	gen := generator.New(genOpts...)
	c.svc = mockservice.New(gen, graph, append(opts, extra...)...)

	if err := c.svc.Reload(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	return c, nil
}

// Run starts the HTTP and gRPC servers and the contracts watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("grpc_port", cfg.App.GRPC.Port),
		slog.String("contracts_dir", cfg.Contracts.Dir),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := setup(ctx, cfg, logger, true, mockservice.WithListener(func(ch mockservice.Change) {
		switch ch.Kind {
		case mockservice.ChangeRegistered, mockservice.ChangeReset:
			broker.PublishRecordEvent(ch.Kind, ch.Contract, ch.Count)
		}
	}))
	if err != nil {
		return err
	}
	defer c.Close()
	svc := c.svc

	if n := cfg.Generation.SeedCount; n > 0 {
		seeded, err := svc.Seed(ctx, n)
		if err != nil {
			logger.Warn("seeding failed", slog.String("error", err.Error()))
		} else {
			logger.Info("store seeded", slog.Int("records", seeded))
		}
	}

	limiter := api.NewLimiter(cfg.Generation.RateLimit, cfg.Generation.RateBurst)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, limiter)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	api.MountHealth(r, func() error {
		if len(svc.ListContracts(ctx, "")) == 0 {
			return errors.New("no contracts loaded")
		}
		return nil
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, grpcHealth := grpcserver.New(svc, logger)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Contracts.Watch {
		g.Go(func() error {
			err := catalog.Watch(gCtx, c.db, c.src, logger, func(kind, path string) {
				if err := svc.Reload(gCtx); err != nil {
					logger.Warn("contracts reload failed", slog.String("path", path), slog.String("error", err.Error()))
					return
				}
				broker.PublishContractEvent(kind, path)
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if cfg.App.GRPC.Enabled() {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.App.GRPC.Address())
			if err != nil {
				return fmt.Errorf("gRPC listen: %w", err)
			}
			logger.Info("Starting gRPC server", slog.String("address", cfg.App.GRPC.Address()))
			if err := grpcServer.Serve(lis); err != nil {
				return fmt.Errorf("gRPC server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		grpcHealth.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		grpcServer.GracefulStop()

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits after a signal.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := setup(ctx, app.config, logger, true)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, version).ServeStdio()
}

// Generate loads the contracts and generates count records of one schema
// without starting any server.
func Generate(ctx context.Context, contract, schemaName string, count int, opts ...Option) (*mockservice.GenerateResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := setup(ctx, app.config, app.logger(), false)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.svc.GenerateRecords(ctx, contract, schemaName, count, false)
}
