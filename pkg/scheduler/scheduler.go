package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"CandleSync/pkg/logger"
)

// Job is a unit of scheduled work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs cron jobs in UTC. Every job is registered in singleton mode so
// a slow run is never overlapped by its next tick.
type Scheduler struct {
	cron   *gocron.Scheduler
	logger *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddCron registers job under a 5-field cron expression.
func (s *Scheduler) AddCron(name, expr string, job Job) error {
	_, err := s.cron.Cron(expr).SingletonMode().Tag(name).Do(func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, expr, err)
	}
	s.logger.Info("job scheduled", logger.String("job", name), logger.String("cron", expr))
	return nil
}

// RunNow starts job once in the background, outside the cron timetable.
func (s *Scheduler) RunNow(name string, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(name, job)
	}()
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info("scheduler started", logger.Int("jobs", s.cron.Len()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Len reports the number of registered cron jobs.
func (s *Scheduler) Len() int {
	return s.cron.Len()
}

func (s *Scheduler) run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", logger.String("job", name), logger.Any("panic", r))
		}
	}()
	if s.ctx.Err() != nil {
		return
	}
	s.logger.Debug("job started", logger.String("job", name))
	job(s.ctx)
}
