package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
	applogger "CandleSync/pkg/logger"
)

const candleColumns = "insts, ts, ccy, period, o, c, h, l, vol, amt, ct"

// CandleTableDDL returns the statement creating table. ReplacingMergeTree
// collapses rows sharing (ccy, period, ts) on merge.
func CandleTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    insts  DateTime64(3, 'UTC'),
    ts     Int64,
    ccy    LowCardinality(String),
    period LowCardinality(String),
    o      Float64,
    c      Float64,
    h      Float64,
    l      Float64,
    vol    Float64,
    amt    Float64,
    ct     Int64
) ENGINE = ReplacingMergeTree(insts)
ORDER BY (ccy, period, ts)`, table)
}

// ClickHouseCandleStore implements CandleStore on a ClickHouse table.
type ClickHouseCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseCandleStore creates the store.
func NewClickHouseCandleStore(db *sql.DB, table string) *ClickHouseCandleStore {
	return &ClickHouseCandleStore{db: db, table: table}
}

var _ drepo.CandleStore = (*ClickHouseCandleStore)(nil)

// SetLogger injects a structured logger.
func (s *ClickHouseCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

// Target names the table in messages.
func (s *ClickHouseCandleStore) Target() string { return s.table }

func (s *ClickHouseCandleStore) MaxTimestamps(ctx context.Context, symbols []string) (models.Watermark, error) {
	wm := make(models.Watermark)
	if len(symbols) == 0 {
		return wm, nil
	}
	q := fmt.Sprintf("SELECT ccy, period, max(ts) FROM %s WHERE ccy IN (%s) GROUP BY ccy, period",
		s.table, placeholders(len(symbols)))
	args := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		args[i] = sym
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query max ts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sym, period string
			ts          int64
		)
		if err := rows.Scan(&sym, &period, &ts); err != nil {
			return nil, fmt.Errorf("scan max ts: %w", err)
		}
		wm[models.SeriesKey{Symbol: sym, Period: models.Period(period)}] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return wm, nil
}

// BulkWrite inserts records in one batch. ClickHouse has no unique
// constraint, so records at or below the stored maximum of their series are
// dropped first; the table engine collapses anything that slips through.
// Ordering has no effect on a single batch.
func (s *ClickHouseCandleStore) BulkWrite(ctx context.Context, records []models.StorageRecord, ordered bool) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	wm, err := s.MaxTimestamps(ctx, symbolsOf(records))
	if err != nil {
		return err
	}
	fresh := newerThan(records, wm)
	if len(fresh) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)", s.table, candleColumns))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range fresh {
		if _, err := stmt.ExecContext(ctx,
			r.InsertedAt.UTC(), r.Timestamp, r.Symbol, r.Period.Key(),
			r.Open, r.Close, r.High, r.Low, r.Volume, r.Amount, r.Count,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append %s@%d: %w", r.Series(), r.Timestamp, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse batch inserted",
			applogger.String("table", s.table),
			applogger.Int("rows", len(fresh)),
			applogger.Int("skipped", len(records)-len(fresh)),
			applogger.Bool("ordered", ordered),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool is owned by pkg/clickhouse.
func (s *ClickHouseCandleStore) Close() error { return nil }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func symbolsOf(records []models.StorageRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		out = append(out, r.Symbol)
	}
	return out
}

// newerThan keeps the records above the watermark of their series and drops
// repeated keys within the batch.
func newerThan(records []models.StorageRecord, wm models.Watermark) []models.StorageRecord {
	type key struct {
		series models.SeriesKey
		ts     int64
	}
	seen := make(map[key]struct{}, len(records))
	out := make([]models.StorageRecord, 0, len(records))
	for _, r := range records {
		k := key{r.Series(), r.Timestamp}
		if _, dup := seen[k]; dup {
			continue
		}
		if last, ok := wm[k.series]; ok && r.Timestamp <= last {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
