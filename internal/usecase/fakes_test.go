package usecase

import (
	"context"
	"errors"
	"sync"

	"CandleSync/internal/domain/models"
)

var errDuplicate = errors.New("duplicate key")

// memStore is an in-memory CandleStore enforcing (symbol, period, ts) uniqueness.
type memStore struct {
	mu       sync.Mutex
	rows     map[models.SeriesKey]map[int64]models.StorageRecord
	writes   [][]models.StorageRecord
	ordered  []bool
	queries  int
	queryErr error
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[models.SeriesKey]map[int64]models.StorageRecord{}}
}

func (s *memStore) MaxTimestamps(_ context.Context, symbols []string) (models.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
	}
	wm := models.Watermark{}
	for key, byTs := range s.rows {
		if !want[key.Symbol] {
			continue
		}
		for ts := range byTs {
			if ts > wm[key] {
				wm[key] = ts
			}
		}
	}
	return wm, nil
}

func (s *memStore) BulkWrite(_ context.Context, records []models.StorageRecord, ordered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, records)
	s.ordered = append(s.ordered, ordered)
	if s.writeErr != nil {
		return s.writeErr
	}
	for _, r := range records {
		key := r.Series()
		if s.rows[key] == nil {
			s.rows[key] = map[int64]models.StorageRecord{}
		}
		if _, dup := s.rows[key][r.Timestamp]; dup {
			if ordered {
				return errDuplicate
			}
			continue
		}
		s.rows[key][r.Timestamp] = r
	}
	return nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) count(key models.SeriesKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[key])
}

func (s *memStore) writeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *memStore) seed(records ...models.StorageRecord) {
	if err := s.BulkWrite(context.Background(), records, false); err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.writes, s.ordered = nil, nil
	s.mu.Unlock()
}

type fetchCall struct {
	Series models.SeriesKey
	Count  int
}

// scriptedSource answers fetches through fn and records every call.
type scriptedSource struct {
	mu    sync.Mutex
	calls []fetchCall
	seen  map[models.SeriesKey]int
	fn    func(key models.SeriesKey, attempt, count int) ([]models.Candle, error)
}

func newScriptedSource(fn func(key models.SeriesKey, attempt, count int) ([]models.Candle, error)) *scriptedSource {
	return &scriptedSource{seen: map[models.SeriesKey]int{}, fn: fn}
}

func (s *scriptedSource) FetchCandles(_ context.Context, symbol string, period models.Period, count int) ([]models.Candle, error) {
	key := models.SeriesKey{Symbol: symbol, Period: period}
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{Series: key, Count: count})
	s.seen[key]++
	attempt := s.seen[key]
	s.mu.Unlock()
	return s.fn(key, attempt, count)
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) callsFor(key models.SeriesKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key]
}

func (s *scriptedSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSource) countsBySeries() map[models.SeriesKey]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[models.SeriesKey]int{}
	for _, c := range s.calls {
		out[c.Series] = c.Count
	}
	return out
}

// hourly returns count hourly candles ending at the hour containing now.
func hourly(now int64, count int) []models.Candle {
	end := now - now%3600
	out := make([]models.Candle, 0, count)
	for i := count - 1; i >= 0; i-- {
		ts := end - int64(i)*3600
		out = append(out, models.Candle{Timestamp: ts, Open: 1, Close: 2, High: 3, Low: 0.5, Volume: 10, Amount: 5, Count: 7})
	}
	return out
}
