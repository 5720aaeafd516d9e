package usecase

import (
	"context"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
)

// WatermarkTracker reads the synchronization watermark of every tracked series.
type WatermarkTracker struct {
	store drepo.WatermarkReader
}

func NewWatermarkTracker(store drepo.WatermarkReader) *WatermarkTracker {
	return &WatermarkTracker{store: store}
}

// Snapshot returns the watermark for symbols. The result is a fresh copy the
// caller owns; a store failure is returned as an ErrWatermarkQuery.
func (t *WatermarkTracker) Snapshot(ctx context.Context, symbols []string) (models.Watermark, error) {
	wm := make(models.Watermark, len(symbols))
	if len(symbols) == 0 {
		return wm, nil
	}
	got, err := t.store.MaxTimestamps(ctx, symbols)
	if err != nil {
		return nil, &SyncError{Kind: ErrWatermarkQuery, Target: "max timestamp per series", Err: err}
	}
	for k, ts := range got {
		if !k.Period.IsValid() {
			continue
		}
		wm[k] = ts
	}
	return wm, nil
}
