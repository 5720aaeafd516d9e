package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"

	"github.com/google/uuid"
)

// SyncOptions tunes a Synchronizer.
type SyncOptions struct {
	Parallelism int  // concurrent fetches per pass
	MaxRetry    int  // stagnation ceiling of the fetch executor
	AsyncInsert bool // chunked unordered writes instead of one ordered write
	// Offset skips the first planned requests. Zero runs the full plan.
	Offset int
	// Target names the write destination in insert errors.
	Target string
}

// Synchronizer runs one incremental synchronization: read watermarks, plan
// requests, fetch with retries, keep the new candles and bulk insert them.
// It never logs; the result carries everything the caller needs.
type Synchronizer struct {
	store   drepo.CandleStore
	source  drepo.QuoteSource
	opts    SyncOptions
	metrics drepo.Metrics

	now   func() time.Time
	newID func() string
}

func NewSynchronizer(store drepo.CandleStore, source drepo.QuoteSource, opts SyncOptions, metrics drepo.Metrics) *Synchronizer {
	if metrics == nil {
		metrics = drepo.NoopMetrics{}
	}
	return &Synchronizer{
		store:   store,
		source:  source,
		opts:    opts,
		metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Synchronizer) validate() error {
	if s.opts.Parallelism <= 0 {
		return validationError("parallelism", s.opts.Parallelism)
	}
	if s.opts.MaxRetry <= 0 {
		return validationError("max retry", s.opts.MaxRetry)
	}
	if s.opts.Offset < 0 {
		return &SyncError{Kind: ErrValidation, Target: "offset", Err: fmt.Errorf("offset must not be negative, got %d", s.opts.Offset)}
	}
	return nil
}

// Run synchronizes the given series. It always returns a result; fatal
// failures, including collaborator panics, are reported with RunFail.
func (s *Synchronizer) Run(ctx context.Context, series models.SeriesConfig) (res models.RunResult) {
	start := s.now()
	res = models.RunResult{RunID: s.newID(), StartedAt: start}
	var errs []error
	defer func() {
		res.Duration = s.now().Sub(start)
		s.metrics.RecordRun(string(res.Status))
		for _, err := range res.Errors {
			s.metrics.RecordError(ErrorKind(err))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			res = fail(res, errs, &SyncError{Kind: ErrUnexpected, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := s.validate(); err != nil {
		return fail(res, nil, err)
	}

	tracker := NewWatermarkTracker(s.store)
	wm, err := tracker.Snapshot(ctx, series.Symbols())
	if err != nil {
		return fail(res, nil, err)
	}

	reqs := PlanRequests(series, start.Unix(), wm)
	reqs = reqs[min(s.opts.Offset, len(reqs)):]
	res.Requests = len(reqs)

	exec := NewFetchExecutor(s.source, s.opts.Parallelism, s.opts.MaxRetry, s.metrics)
	outcomes, stats := exec.Execute(ctx, reqs)
	res.Passes = stats.Passes

	var records []models.StorageRecord
	now := s.now()
	for _, o := range outcomes {
		recs, err := TransformResult(o, wm, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(recs) > 0 {
			s.metrics.RecordRecords(o.Request.Series.Symbol, o.Request.Series.Period.String(), len(recs))
		}
		records = append(records, recs...)
	}

	insertStart := s.now()
	inserter := NewBulkInserter(s.store, s.opts.AsyncInsert, s.opts.Target)
	if err := inserter.Insert(ctx, records); err != nil {
		return fail(res, errs, err)
	}
	s.metrics.RecordLatency("insert", s.now().Sub(insertStart).Seconds())
	res.Records = len(records)

	if len(errs) > 0 {
		res.Status = models.RunPartiallyFailed
		res.Message = fmt.Sprintf("Partially Failed: %d new documents inserted, %d requests failed.", len(records), len(errs))
		res.Errors = errs
		return res
	}
	res.Status = models.RunSuccess
	res.Message = fmt.Sprintf("Success: %d new documents inserted.", len(records))
	return res
}

func fail(res models.RunResult, itemErrs []error, cause error) models.RunResult {
	res.Status = models.RunFail
	res.Message = "Fail: " + cause.Error()
	res.Errors = append(append([]error{}, itemErrs...), cause)
	return res
}

// Err folds the errors of a result into one error, or nil.
func Err(res models.RunResult) error {
	return errors.Join(res.Errors...)
}
