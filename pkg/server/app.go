package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CandleSync/internal/usecase"
	"CandleSync/pkg/config"
	xhttp "CandleSync/pkg/http"
	applogger "CandleSync/pkg/logger"
	"CandleSync/pkg/scheduler"

	"golang.org/x/sync/errgroup"
)

const syncJobName = "candle-sync"

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	scheduler  *scheduler.Scheduler
	job        *usecase.SyncJob
	httpServer *xhttp.Server
}

// New creates a new App. Infrastructure clients are owned by the caller and
// must stay open until Run returns.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	job *usecase.SyncJob,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		scheduler:  sched,
		job:        job,
		httpServer: httpServer,
	}
}

// Run starts the scheduler and the HTTP server and blocks until SIGINT or
// SIGTERM, or until the HTTP listener fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	if err := a.scheduler.AddCron(syncJobName, a.cfg.Sync.Cron, a.job.Scheduled); err != nil {
		return err
	}
	a.scheduler.Start()
	if a.cfg.Sync.RunOnStart {
		a.scheduler.RunNow(syncJobName, a.job.Scheduled)
	}

	if err := a.httpServer.Start(); err != nil {
		a.scheduler.Stop()
		return fmt.Errorf("start http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-a.httpServer.Err():
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		return a.shutdown()
	})
	return g.Wait()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	// cron first, then runs triggered over HTTP
	a.scheduler.Stop()
	done := make(chan struct{})
	go func() {
		a.job.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		a.logger.Warn("background sync still running at shutdown")
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
