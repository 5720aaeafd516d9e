package usecase

import (
	"sort"

	"CandleSync/internal/domain/models"
)

// PlanRequests builds one FetchRequest per configured (symbol, period).
//
// A series without watermark gets a full page. Otherwise the count covers
// every period elapsed since the watermark, plus the one in progress:
// floor((now - wm) / period) + 1, clamped to [1, MaxRequestCount].
func PlanRequests(series models.SeriesConfig, now int64, wm models.Watermark) []models.FetchRequest {
	symbols := series.Symbols()
	sort.Strings(symbols)

	out := make([]models.FetchRequest, 0, len(symbols))
	for _, sym := range symbols {
		for _, p := range series[sym] {
			key := models.SeriesKey{Symbol: sym, Period: p}
			out = append(out, models.FetchRequest{Series: key, Count: plannedCount(key, now, wm)})
		}
	}
	return out
}

func plannedCount(key models.SeriesKey, now int64, wm models.Watermark) int {
	last, ok := wm[key]
	secs := key.Period.Seconds()
	if !ok || secs <= 0 {
		return models.MaxRequestCount
	}
	if last >= now {
		return 1
	}
	diff := now - last
	if diff < 0 { // overflow on absurd watermarks
		return models.MaxRequestCount
	}
	n := diff/secs + 1
	if n > models.MaxRequestCount {
		return models.MaxRequestCount
	}
	return int(n)
}
