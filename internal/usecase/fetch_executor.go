package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
)

// FetchOutcome is a finalized request: either its candles or the error of its
// last attempt.
type FetchOutcome struct {
	Request models.FetchRequest
	Candles []models.Candle
	Err     error
}

// FetchStats summarizes one Execute call.
type FetchStats struct {
	Passes   int
	Requeued int
}

// FetchExecutor resolves a set of FetchRequests with bounded concurrency.
//
// Retries follow a queue-wide stagnation counter rather than a per-request
// budget: after every pass the counter resets to 1 if the queue length
// changed and increments otherwise. On the pass where the counter equals
// maxRetry every popped request is finalized, failed or not.
type FetchExecutor struct {
	source      drepo.QuoteSource
	parallelism int
	maxRetry    int
	metrics     drepo.Metrics

	// observePass, when set, is called after each pass with the counter value
	// used for that pass and the queue length left behind.
	observePass func(attempt, queueLen int)
}

func NewFetchExecutor(source drepo.QuoteSource, parallelism, maxRetry int, metrics drepo.Metrics) *FetchExecutor {
	if metrics == nil {
		metrics = drepo.NoopMetrics{}
	}
	return &FetchExecutor{
		source:      source,
		parallelism: parallelism,
		maxRetry:    maxRetry,
		metrics:     metrics,
	}
}

type fetchJob struct {
	slot int
	req  models.FetchRequest
}

type fetchResult struct {
	slot    int
	outcome FetchOutcome
}

// Execute runs fetch passes until every request is finalized. Outcomes are
// returned in finalization order.
func (e *FetchExecutor) Execute(ctx context.Context, reqs []models.FetchRequest) ([]FetchOutcome, FetchStats) {
	var stats FetchStats
	if len(reqs) == 0 || e.parallelism <= 0 || e.maxRetry <= 0 {
		return nil, stats
	}

	workers := min(e.parallelism, len(reqs))
	jobs := make(chan fetchJob, workers)
	results := make(chan fetchResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- fetchResult{slot: j.slot, outcome: e.fetch(ctx, j.req)}
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	queue := make([]models.FetchRequest, len(reqs))
	copy(queue, reqs)
	outcomes := make([]FetchOutcome, 0, len(reqs))

	sizeBefore := len(queue)
	attempt := 1
	for len(queue) > 0 && attempt <= e.maxRetry {
		n := min(workers, len(queue))
		batch := make([]models.FetchRequest, n)
		copy(batch, queue[len(queue)-n:])
		queue = queue[:len(queue)-n]

		for i, req := range batch {
			jobs <- fetchJob{slot: i, req: req}
		}
		done := make([]FetchOutcome, n)
		for i := 0; i < n; i++ {
			r := <-results
			done[r.slot] = r.outcome
		}

		final := attempt == e.maxRetry
		requeued := 0
		for _, o := range done {
			if o.Err == nil || final {
				outcomes = append(outcomes, o)
				continue
			}
			queue = append(queue, o.Request)
			requeued++
		}

		stats.Passes++
		stats.Requeued += requeued
		e.metrics.RecordFetchPass(n, requeued)
		if e.observePass != nil {
			e.observePass(attempt, len(queue))
		}

		if len(queue) != sizeBefore {
			attempt = 1
		} else {
			attempt++
		}
		sizeBefore = len(queue)
	}
	return outcomes, stats
}

func (e *FetchExecutor) fetch(ctx context.Context, req models.FetchRequest) (out FetchOutcome) {
	out.Request = req
	defer func() {
		if r := recover(); r != nil {
			out.Candles = nil
			out.Err = fmt.Errorf("quote source panic: %v", r)
		}
	}()
	start := time.Now()
	out.Candles, out.Err = e.source.FetchCandles(ctx, req.Series.Symbol, req.Series.Period, req.Count)
	e.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	return out
}
