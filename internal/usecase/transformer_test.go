package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"CandleSync/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btc1h = models.SeriesKey{Symbol: "btcusdt", Period: models.Period1h}

func TestTransformResult_KeepsOnlyNewerCandles(t *testing.T) {
	now := time.Unix(1_700_010_000, 0)
	outcome := FetchOutcome{
		Request: models.FetchRequest{Series: btc1h, Count: 3},
		Candles: []models.Candle{
			{Timestamp: 1_699_999_200, Open: 1},
			{Timestamp: 1_700_002_800, Open: 2},
			{Timestamp: 1_700_006_400, Open: 3, Close: 4, High: 5, Low: 0.5, Volume: 6, Amount: 7, Count: 8},
		},
	}

	recs, err := TransformResult(outcome, models.Watermark{btc1h: 1_700_002_800}, now)

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StorageRecord{
		InsertedAt: now,
		Symbol:     "btcusdt",
		Period:     models.Period1h,
		Timestamp:  1_700_006_400,
		Open:       3, Close: 4, High: 5, Low: 0.5,
		Volume: 6, Amount: 7, Count: 8,
	}, recs[0])
}

func TestTransformResult_NoWatermarkKeepsEverything(t *testing.T) {
	outcome := FetchOutcome{
		Request: models.FetchRequest{Series: btc1h, Count: models.MaxRequestCount},
		Candles: hourly(1_700_000_000, 5),
	}
	recs, err := TransformResult(outcome, nil, time.Now())
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestTransformResult_FetchFailure(t *testing.T) {
	cause := errors.New("connection reset")
	_, err := TransformResult(FetchOutcome{
		Request: models.FetchRequest{Series: btc1h, Count: 12},
		Err:     cause,
	}, nil, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsFatal(err))
	assert.Equal(t, "fetch error (btcusdt, 1h, 12): connection reset", err.Error())
}

func TestTransformResult_NonFiniteValueRejectsRequest(t *testing.T) {
	_, err := TransformResult(FetchOutcome{
		Request: models.FetchRequest{Series: btc1h, Count: 2},
		Candles: []models.Candle{
			{Timestamp: 10, Open: 1},
			{Timestamp: 20, High: math.Inf(1)},
		},
	}, nil, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransform)
	assert.Contains(t, err.Error(), "high")
	assert.Equal(t, "transform", ErrorKind(err))
}
