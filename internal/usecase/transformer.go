package usecase

import (
	"fmt"
	"math"
	"time"

	"CandleSync/internal/domain/models"
)

// TransformResult turns a finalized fetch into storage records.
//
// Only candles strictly newer than the series watermark are kept: the planned
// count is an estimate and the exchange may return candles already stored.
// A failed fetch yields no records and an ErrFetch; a candle that cannot be
// stored yields no records for the whole request and an ErrTransform.
func TransformResult(o FetchOutcome, wm models.Watermark, now time.Time) ([]models.StorageRecord, error) {
	if o.Err != nil {
		return nil, requestError(ErrFetch, o.Request, o.Err)
	}

	key := o.Request.Series
	last := wm.Last(key)
	records := make([]models.StorageRecord, 0, len(o.Candles))
	for _, c := range o.Candles {
		if c.Timestamp <= last {
			continue
		}
		if err := checkCandle(c); err != nil {
			return nil, requestError(ErrTransform, o.Request, err)
		}
		records = append(records, models.StorageRecord{
			InsertedAt: now,
			Symbol:     key.Symbol,
			Period:     key.Period,
			Timestamp:  c.Timestamp,
			Open:       c.Open,
			Close:      c.Close,
			High:       c.High,
			Low:        c.Low,
			Volume:     c.Volume,
			Amount:     c.Amount,
			Count:      c.Count,
		})
	}
	return records, nil
}

func checkCandle(c models.Candle) error {
	fields := [...]struct {
		name string
		v    float64
	}{
		{"open", c.Open}, {"close", c.Close}, {"high", c.High}, {"low", c.Low},
		{"vol", c.Volume}, {"amount", c.Amount},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("candle %d: %s is not a finite number", c.Timestamp, f.name)
		}
	}
	return nil
}
