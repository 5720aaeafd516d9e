package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleSync/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syncNow = int64(1_700_000_000)

func newTestSynchronizer(store *memStore, src *scriptedSource, opts SyncOptions) *Synchronizer {
	s := NewSynchronizer(store, src, opts, nil)
	s.now = func() time.Time { return time.Unix(syncNow, 0) }
	s.newID = func() string { return "run-1" }
	return s
}

func defaultOpts() SyncOptions {
	return SyncOptions{Parallelism: 4, MaxRetry: 3, Target: "crypto.candles"}
}

// upstream serves the last count hourly candles, honoring the requested count.
func upstream() *scriptedSource {
	return newScriptedSource(func(_ models.SeriesKey, _ int, count int) ([]models.Candle, error) {
		return hourly(syncNow, min(count, 48)), nil
	})
}

func TestRun_InsertsAndIsIdempotent(t *testing.T) {
	store := newMemStore()
	series := models.SeriesConfig{"btcusdt": {models.Period1h}, "ethusdt": {models.Period1h}}

	first := newTestSynchronizer(store, upstream(), defaultOpts()).Run(context.Background(), series)

	require.Equal(t, models.RunSuccess, first.Status, first.Message)
	assert.Equal(t, "Success: 96 new documents inserted.", first.Message)
	assert.Equal(t, 96, first.Records)
	assert.Equal(t, 2, first.Requests)
	assert.Equal(t, "run-1", first.RunID)
	assert.Empty(t, first.Errors)

	second := newTestSynchronizer(store, upstream(), defaultOpts()).Run(context.Background(), series)

	require.Equal(t, models.RunSuccess, second.Status)
	assert.Equal(t, "Success: 0 new documents inserted.", second.Message)
	assert.Equal(t, 48, store.count(models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}))
	assert.Equal(t, 1, store.writeCalls())
}

func TestRun_CaseVariantSymbolsSyncOnce(t *testing.T) {
	store := newMemStore()
	series, err := models.ParseSeriesConfig(map[string][]string{"BTCUSDT": {"1h"}, "btcusdt": {"1h"}})
	require.NoError(t, err)

	res := newTestSynchronizer(store, upstream(), defaultOpts()).Run(context.Background(), series)

	require.Equal(t, models.RunSuccess, res.Status, res.Message)
	assert.Equal(t, 1, res.Requests)
	assert.Equal(t, 48, res.Records)
	assert.Equal(t, []bool{true}, store.ordered)
}

func TestRun_WatermarkNeverMovesBackwards(t *testing.T) {
	store := newMemStore()
	key := models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}
	store.seed(models.StorageRecord{Symbol: "btcusdt", Period: models.Period1h, Timestamp: syncNow - syncNow%3600 - 7200})
	series := models.SeriesConfig{"btcusdt": {models.Period1h}}

	before, err := store.MaxTimestamps(context.Background(), []string{"btcusdt"})
	require.NoError(t, err)

	src := upstream()
	res := newTestSynchronizer(store, src, defaultOpts()).Run(context.Background(), series)
	require.Equal(t, models.RunSuccess, res.Status)

	after, err := store.MaxTimestamps(context.Background(), []string{"btcusdt"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after[key], before[key])
	assert.Equal(t, 2, res.Records)
	// 2h and a bit since the watermark: two closed hours plus the open one
	assert.Equal(t, 3, src.countsBySeries()[key])
}

func TestRun_NoNewDataIsSuccess(t *testing.T) {
	store := newMemStore()
	src := newScriptedSource(func(models.SeriesKey, int, int) ([]models.Candle, error) { return nil, nil })

	res := newTestSynchronizer(store, src, defaultOpts()).Run(context.Background(), models.SeriesConfig{"btcusdt": {models.Period1d}})

	assert.Equal(t, models.RunSuccess, res.Status)
	assert.Equal(t, "Success: 0 new documents inserted.", res.Message)
	assert.Zero(t, store.writeCalls())
	assert.Equal(t, map[models.SeriesKey]int{{Symbol: "btcusdt", Period: models.Period1d}: models.MaxRequestCount}, src.countsBySeries())
}

func TestRun_InvalidOptionsFailBeforeAnyIO(t *testing.T) {
	cases := map[string]SyncOptions{
		"parallelism": {Parallelism: 0, MaxRetry: 3},
		"max retry":   {Parallelism: 2, MaxRetry: 0},
		"offset":      {Parallelism: 2, MaxRetry: 3, Offset: -1},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			src := upstream()

			res := newTestSynchronizer(store, src, opts).Run(context.Background(), models.SeriesConfig{"btcusdt": {models.Period1h}})

			assert.Equal(t, models.RunFail, res.Status)
			require.Len(t, res.Errors, 1)
			assert.ErrorIs(t, res.Errors[0], ErrValidation)
			assert.Contains(t, res.Message, name)
			assert.Zero(t, store.queries)
			assert.Zero(t, src.totalCalls())
		})
	}
}

func TestRun_WatermarkQueryFailure(t *testing.T) {
	store := newMemStore()
	store.queryErr = errors.New("server selection timeout")
	src := upstream()

	res := newTestSynchronizer(store, src, defaultOpts()).Run(context.Background(), models.SeriesConfig{"btcusdt": {models.Period1h}})

	assert.Equal(t, models.RunFail, res.Status)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrWatermarkQuery)
	assert.ErrorIs(t, Err(res), store.queryErr)
	assert.Zero(t, src.totalCalls())
}

func TestRun_PartialFailure(t *testing.T) {
	store := newMemStore()
	src := newScriptedSource(func(key models.SeriesKey, _ int, count int) ([]models.Candle, error) {
		if key.Symbol == "xtzusdt" {
			return nil, errors.New("invalid symbol")
		}
		return hourly(syncNow, min(count, 10)), nil
	})
	series := models.SeriesConfig{"btcusdt": {models.Period1h}, "xtzusdt": {models.Period1h, models.Period1d}}

	res := newTestSynchronizer(store, src, defaultOpts()).Run(context.Background(), series)

	assert.Equal(t, models.RunPartiallyFailed, res.Status)
	assert.Equal(t, 10, res.Records)
	require.Len(t, res.Errors, 2)
	for _, err := range res.Errors {
		assert.ErrorIs(t, err, ErrFetch)
		assert.Contains(t, err.Error(), "xtzusdt")
	}
	assert.Equal(t, 10, store.count(models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}))
}

func TestRun_InsertFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.writeErr = errors.New("not primary")
	src := newScriptedSource(func(key models.SeriesKey, _ int, _ int) ([]models.Candle, error) {
		if key.Period == models.Period1d {
			return nil, errors.New("timeout")
		}
		return hourly(syncNow, 4), nil
	})
	series := models.SeriesConfig{"btcusdt": {models.Period1h, models.Period1d}}

	res := newTestSynchronizer(store, src, defaultOpts()).Run(context.Background(), series)

	assert.Equal(t, models.RunFail, res.Status)
	require.Len(t, res.Errors, 2)
	assert.ErrorIs(t, res.Errors[0], ErrFetch)
	assert.ErrorIs(t, res.Errors[1], ErrInsert)
	assert.Contains(t, res.Message, "4 records into crypto.candles")
	assert.Zero(t, res.Records)
}

// staleStore reports no watermark so every run refetches stored candles.
type staleStore struct{ *memStore }

func (staleStore) MaxTimestamps(context.Context, []string) (models.Watermark, error) {
	return models.Watermark{}, nil
}

func TestRun_AsyncInsertToleratesDuplicates(t *testing.T) {
	store := newMemStore()
	series := models.SeriesConfig{"btcusdt": {models.Period1h}}
	opts := defaultOpts()
	opts.AsyncInsert = true

	s := NewSynchronizer(staleStore{store}, upstream(), opts, nil)
	s.now = func() time.Time { return time.Unix(syncNow, 0) }

	for range 2 {
		res := s.Run(context.Background(), series)
		require.Equal(t, models.RunSuccess, res.Status, res.Message)
		assert.Equal(t, 48, res.Records)
	}
	assert.Equal(t, 48, store.count(models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}))
	assert.Equal(t, []bool{false, false}, store.ordered)
}

func TestRun_OffsetSkipsPlannedRequests(t *testing.T) {
	store := newMemStore()
	src := upstream()
	opts := defaultOpts()
	opts.Offset = 1
	series := models.SeriesConfig{"btcusdt": {models.Period1h}, "ethusdt": {models.Period1h}}

	res := newTestSynchronizer(store, src, opts).Run(context.Background(), series)

	assert.Equal(t, models.RunSuccess, res.Status)
	assert.Equal(t, 1, res.Requests)
	assert.Equal(t, 1, src.callsFor(models.SeriesKey{Symbol: "ethusdt", Period: models.Period1h}))
	assert.Zero(t, src.callsFor(models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}))
}

// panickyStore panics on the selected store call.
type panickyStore struct {
	*memStore
	onQuery bool
	onWrite bool
}

func (s panickyStore) MaxTimestamps(ctx context.Context, symbols []string) (models.Watermark, error) {
	if s.onQuery {
		panic("cursor closed")
	}
	return s.memStore.MaxTimestamps(ctx, symbols)
}

func (s panickyStore) BulkWrite(ctx context.Context, records []models.StorageRecord, ordered bool) error {
	if s.onWrite {
		panic("nil session")
	}
	return s.memStore.BulkWrite(ctx, records, ordered)
}

func TestRun_StorePanicIsFail(t *testing.T) {
	series := models.SeriesConfig{"btcusdt": {models.Period1h}}
	cases := map[string]struct {
		store panickyStore
		async bool
	}{
		"watermark query": {store: panickyStore{memStore: newMemStore(), onQuery: true}},
		"ordered write":   {store: panickyStore{memStore: newMemStore(), onWrite: true}},
		"chunked write":   {store: panickyStore{memStore: newMemStore(), onWrite: true}, async: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			opts := defaultOpts()
			opts.AsyncInsert = tc.async
			s := NewSynchronizer(tc.store, upstream(), opts, nil)
			s.now = func() time.Time { return time.Unix(syncNow, 0) }

			var res models.RunResult
			require.NotPanics(t, func() { res = s.Run(context.Background(), series) })

			assert.Equal(t, models.RunFail, res.Status)
			assert.Contains(t, res.Message, "panic")
			assert.True(t, IsFatal(Err(res)))
		})
	}
}
