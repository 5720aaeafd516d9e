package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MaxRequestCount is the largest page the quote service returns for one series.
const MaxRequestCount = 2000

// SeriesKey identifies one independent candle series.
type SeriesKey struct {
	Symbol string
	Period Period
}

func (k SeriesKey) String() string { return fmt.Sprintf("%s@%s", k.Symbol, k.Period) }

// Watermark maps each series to its last persisted timestamp (unix seconds).
// A missing entry means the series has never been synchronized.
type Watermark map[SeriesKey]int64

// Last returns the watermark of key, or 0 when the series was never synced.
func (w Watermark) Last(key SeriesKey) int64 {
	return w[key]
}

// FetchRequest asks the quote service for the latest Count candles of a series.
type FetchRequest struct {
	Series SeriesKey
	Count  int
}

// Candle is one raw OHLCV sample as returned by the exchange.
type Candle struct {
	Timestamp int64 // unix seconds, period open time
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64 // traded value (quote currency)
	Amount    float64 // traded amount (base currency)
	Count     int64   // number of trades
}

// StorageRecord is a candle ready to be persisted. (Symbol, Period, Timestamp)
// is unique in the store.
type StorageRecord struct {
	InsertedAt time.Time
	Symbol     string
	Period     Period
	Timestamp  int64
	Open       float64
	Close      float64
	High       float64
	Low        float64
	Volume     float64
	Amount     float64
	Count      int64
}

// Series returns the key of the series the record belongs to.
func (r StorageRecord) Series() SeriesKey {
	return SeriesKey{Symbol: r.Symbol, Period: r.Period}
}

// SeriesConfig maps each tracked symbol to the periods synchronized for it.
type SeriesConfig map[string][]Period

// Symbols returns the configured symbols.
func (c SeriesConfig) Symbols() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	return out
}

// Restrict returns the subset of c limited to symbols. Unknown symbols are ignored.
func (c SeriesConfig) Restrict(symbols []string) SeriesConfig {
	if len(symbols) == 0 {
		return c
	}
	out := make(SeriesConfig, len(symbols))
	for _, s := range symbols {
		if periods, ok := c[s]; ok {
			out[s] = periods
		}
	}
	return out
}

// ParseSeriesConfig converts a symbol to period-key table, such as the one in
// the configuration file, into a SeriesConfig. Symbols are lowercased and each
// series appears once, even when listed under differently cased symbols.
func ParseSeriesConfig(table map[string][]string) (SeriesConfig, error) {
	out := make(SeriesConfig, len(table))
	for sym, keys := range table {
		sym = strings.ToLower(strings.TrimSpace(sym))
		if sym == "" {
			return nil, fmt.Errorf("empty symbol")
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("%s: no periods", sym)
		}
		periods, err := ParsePeriods(keys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		for _, p := range periods {
			if !slices.Contains(out[sym], p) {
				out[sym] = append(out[sym], p)
			}
		}
	}
	return out, nil
}
