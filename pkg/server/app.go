package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockWatch/internal/domain/repository"
	"StockWatch/internal/usecase"
	pkgch "StockWatch/pkg/clickhouse"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
	applogger "StockWatch/pkg/logger"
)

// App encapsulates the application lifecycle. The default mode is a single
// batch run, matching a cron or CI scheduler. Serve mode keeps the process
// up with the admin API so runs can be triggered over HTTP.
type App struct {
	cfg        *config.Config
	runner     *usecase.WatchRunner
	handler    xhttp.Handler
	events     repository.EventPublisher
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	log        *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	runner *usecase.WatchRunner,
	handler xhttp.Handler,
	events repository.EventPublisher,
	chClient *pkgch.Client,
	log *applogger.Logger,
) *App {
	return &App{
		cfg:      cfg,
		runner:   runner,
		handler:  handler,
		events:   events,
		chClient: chClient,
		log:      log,
	}
}

// RunOnce executes a single batch pass and releases all resources.
func (a *App) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Watcher.RunTimeout)
	defer cancel()
	defer a.closeClients()

	summary, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}

	if summary.Errored > 0 {
		a.log.Warn("run completed with errors",
			applogger.Int("errored", summary.Errored),
			applogger.Int("evaluated", summary.Evaluated))
	}
	return nil
}

// Serve starts the admin HTTP server and blocks until interrupted.
func (a *App) Serve() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("admin api listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.closeClients()
	return nil
}

func (a *App) closeClients() {
	// final flush of any aggregated error batches
	a.log.RemoveCollector()
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
