// Package server initializes and runs the taskauth API server.
// It opens the database, applies migrations and seeds roles, builds the
// account services and serves them over HTTP until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/taskauth/internal/buildinfo"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/config"
	"github.com/dmitrijs2005/taskauth/internal/server/httpapi"
	"github.com/dmitrijs2005/taskauth/internal/server/metrics"
	"github.com/dmitrijs2005/taskauth/internal/server/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	limiter *ratelimit.Limiter
	server  *httpapi.HTTPServer
}

// NewApp wires the application for c, logging to stdout.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(w, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, rm, err := OpenStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	svc, err := NewServices(ctx, db, rm, c, logger, m)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	if c.LoginRateLimit != "" {
		app.limiter, err = ratelimit.New(ctx, ratelimit.Options{Rate: c.LoginRateLimit, RedisAddr: c.RedisAddr})
		if err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("rate limiter init error: %w", err)
		}
	}

	app.server = httpapi.NewHTTPServer(httpapi.Options{
		Address:            c.HTTPAddr,
		CORSAllowedOrigins: c.CORSAllowedOrigins,
		ShutdownTimeout:    c.ShutdownTimeout,
	}, logger, svc.Auth, svc.Moderation, svc.Tokens, app.limiter, m)

	return app, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// releases the database and the limiter store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version(), "driver", app.config.DatabaseDriver)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info(ctx, "Shutdown requested")
		return nil
	})

	err := g.Wait()
	app.close(context.WithoutCancel(ctx))

	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "Server stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.limiter != nil {
		if err := app.limiter.Close(); err != nil {
			app.logger.Warn(ctx, "error closing rate limiter", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "error closing database", "error", err)
		}
	}
}
