package repository

import (
	"context"

	"CandleSync/internal/domain/models"
)

// QuoteSource fetches historical candles from an exchange. Calls are assumed
// idempotent and safe to retry; no ordering of the returned candles is required.
type QuoteSource interface {
	FetchCandles(ctx context.Context, symbol string, period models.Period, count int) ([]models.Candle, error)
	Name() string
}

// WatermarkReader reads the last persisted timestamp of every series.
type WatermarkReader interface {
	// MaxTimestamps returns, for each (symbol, period) present in the store and
	// restricted to symbols, the greatest stored timestamp.
	MaxTimestamps(ctx context.Context, symbols []string) (models.Watermark, error)
}

// BulkWriter persists storage records. The store enforces uniqueness of
// (symbol, period, timestamp). With ordered=false individual duplicate-key
// violations must not abort the rest of the batch.
type BulkWriter interface {
	BulkWrite(ctx context.Context, records []models.StorageRecord, ordered bool) error
}

// CandleStore is the time-series store the synchronizer reads from and writes to.
type CandleStore interface {
	WatermarkReader
	BulkWriter
	Health(ctx context.Context) error
	Close() error
}

// ReportPublisher ships run reports to downstream consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report models.RunReport) error
	Close() error
}

type Metrics interface {
	RecordRun(status string)
	RecordRecords(symbol, period string, n int)
	RecordError(kind string)
	RecordFetchPass(batch, requeued int)
	RecordLatency(op string, seconds float64)
}
