package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
	"CandleSync/pkg/cache"
	"CandleSync/pkg/logger"

	"github.com/google/uuid"
)

const (
	syncLockKey   = "sync:lock"
	lastReportKey = "sync:last"
)

var (
	ErrRunInProgress = errors.New("synchronization already in progress")
	ErrNoSeries      = errors.New("no configured series matches the request")
	ErrNoReport      = errors.New("no synchronization has completed yet")
)

// Runner executes one synchronization over a series table.
type Runner interface {
	Run(ctx context.Context, series models.SeriesConfig) models.RunResult
}

// SyncJob is what the scheduler and the HTTP API trigger. It serializes runs
// through a TTL lock, logs the outcome and hands the report downstream.
type SyncJob struct {
	runner    Runner
	series    models.SeriesConfig
	store     cache.Store
	publisher drepo.ReportPublisher
	logger    *logger.Logger
	lockTTL   time.Duration
	newToken  func() string

	wg sync.WaitGroup
}

func NewSyncJob(runner Runner, series models.SeriesConfig, store cache.Store, publisher drepo.ReportPublisher, l *logger.Logger, lockTTL time.Duration) *SyncJob {
	if publisher == nil {
		publisher = drepo.NoopPublisher{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &SyncJob{
		runner:    runner,
		series:    series,
		store:     store,
		publisher: publisher,
		logger:    l,
		lockTTL:   lockTTL,
		newToken:  uuid.NewString,
	}
}

// Execute runs a synchronization now and waits for it. symbols restricts the
// run to a subset of the configured table; empty means everything.
func (j *SyncJob) Execute(ctx context.Context, trigger string, symbols []string) (models.RunReport, error) {
	series, token, err := j.acquire(ctx, symbols)
	if err != nil {
		return models.RunReport{}, err
	}
	return j.runLocked(ctx, trigger, series, token), nil
}

// Start is Execute in the background. Lock and selection errors are returned
// synchronously; the run itself outlives ctx cancellation.
func (j *SyncJob) Start(ctx context.Context, trigger string, symbols []string) error {
	series, token, err := j.acquire(ctx, symbols)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.runLocked(runCtx, trigger, series, token)
	}()
	return nil
}

// Wait blocks until background runs started with Start have finished.
func (j *SyncJob) Wait() {
	j.wg.Wait()
}

// Scheduled is the cron entry point.
func (j *SyncJob) Scheduled(ctx context.Context) {
	_, err := j.Execute(ctx, "cron", nil)
	switch {
	case errors.Is(err, ErrRunInProgress):
		j.logger.Info("sync skipped, previous run still holds the lock")
	case err != nil:
		j.logger.Error("sync not started", logger.Error(err))
	}
}

// LastReport returns the report of the most recent finished run.
func (j *SyncJob) LastReport(ctx context.Context) (models.RunReport, error) {
	var report models.RunReport
	if err := j.store.Get(ctx, lastReportKey, &report); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return report, ErrNoReport
		}
		return report, fmt.Errorf("read last report: %w", err)
	}
	return report, nil
}

// acquire selects the series and takes the run lock under a fresh token.
func (j *SyncJob) acquire(ctx context.Context, symbols []string) (models.SeriesConfig, string, error) {
	series := j.series.Restrict(symbols)
	if len(series) == 0 {
		return nil, "", ErrNoSeries
	}
	token := j.newToken()
	ok, err := j.store.TryLock(ctx, syncLockKey, token, j.lockTTL)
	if err != nil {
		return nil, "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, "", ErrRunInProgress
	}
	return series, token, nil
}

func (j *SyncJob) runLocked(ctx context.Context, trigger string, series models.SeriesConfig, token string) models.RunReport {
	defer func() {
		err := j.store.Unlock(context.WithoutCancel(ctx), syncLockKey, token)
		switch {
		case errors.Is(err, cache.ErrLockNotHeld):
			j.logger.Warn("run lock expired before release", logger.Duration("lock_ttl", j.lockTTL))
		case err != nil:
			j.logger.Warn("release run lock", logger.Error(err))
		}
	}()

	res := j.runner.Run(ctx, series)
	report := models.NewRunReport(res, trigger)
	j.logResult(report)

	if err := j.store.Set(ctx, lastReportKey, report, 0); err != nil {
		j.logger.Warn("store last report", logger.String("run_id", report.RunID), logger.Error(err))
	}
	if err := j.publisher.PublishReport(ctx, report); err != nil {
		j.logger.Warn("publish run report", logger.String("run_id", report.RunID), logger.Error(err))
	}
	return report
}

func (j *SyncJob) logResult(r models.RunReport) {
	fields := []logger.Field{
		logger.String("run_id", r.RunID),
		logger.String("trigger", r.Trigger),
		logger.Int("requests", r.Requests),
		logger.Int("records", r.Records),
		logger.Int("passes", r.Passes),
		logger.Int64("duration_ms", r.DurationMs),
	}
	switch r.Status {
	case models.RunSuccess:
		j.logger.Info(r.Message, fields...)
	default:
		fields = append(fields, logger.String("errors", strings.Join(r.Errors, "\n")))
		j.logger.Error(r.Message, fields...)
	}
}
