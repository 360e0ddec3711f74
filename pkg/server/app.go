package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TrapFlow/internal/domain/repository"
	"TrapFlow/internal/handler/api"
	"TrapFlow/internal/usecase"
	"TrapFlow/pkg/config"
	xhttp "TrapFlow/pkg/http"
	applogger "TrapFlow/pkg/logger"
	"TrapFlow/pkg/store"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	st         store.Store
	feed       *usecase.Feed
	pub        repository.TrapPublisher
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. pub may be nil when
// no downstream notifier is configured.
func New(cfg *config.Config, log *applogger.Logger, st store.Store, feed *usecase.Feed, pub repository.TrapPublisher) *App {
	return &App{cfg: cfg, log: log, st: st, feed: feed, pub: pub}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := api.NewDashboardHandler(a.log, a.st, a.feed)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.feed.Start(ctx); err != nil {
		a.log.Error("feed start error", applogger.Error(err))
		return err
	}
	a.log.Info("feed started", applogger.String("stream", a.cfg.Stream.URL))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.feed.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if err := a.st.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
