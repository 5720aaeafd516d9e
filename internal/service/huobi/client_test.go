package huobi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"CandleSync/internal/domain/models"
	"CandleSync/internal/service/ratelimit"
	xhttp "CandleSync/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klineBody = `{
  "ch": "market.btcusdt.kline.60min",
  "status": "ok",
  "ts": 1700000000123,
  "data": [
    {"id": 1699999200, "open": 36500.1, "close": 36520.5, "low": 36480, "high": 36550, "amount": 12.5, "vol": 456789.25, "count": 321},
    {"id": 1699995600, "open": 36400, "close": 36500.1, "low": 36390, "high": 36510, "amount": 8, "vol": 292000, "count": 210}
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := newClient(srv.URL, xhttp.NewClient(xhttp.WithTimeout(time.Second)), nil)
	require.NoError(t, err)
	return c
}

func TestFetchCandles(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, historyPath, r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(klineBody))
	})

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", models.Period1h, 2)

	require.NoError(t, err)
	assert.Equal(t, "btcusdt", got.Get("symbol"))
	assert.Equal(t, "60min", got.Get("period"))
	assert.Equal(t, "2", got.Get("size"))
	require.Len(t, candles, 2)
	assert.Equal(t, models.Candle{
		Timestamp: 1699999200,
		Open:      36500.1, Close: 36520.5, High: 36550, Low: 36480,
		Volume: 456789.25, Amount: 12.5, Count: 321,
	}, candles[0])
}

func TestFetchCandles_ClampsSize(t *testing.T) {
	var size string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		size = r.URL.Query().Get("size")
		_, _ = w.Write([]byte(`{"status":"ok","data":[]}`))
	})

	candles, err := c.FetchCandles(context.Background(), "ethusdt", models.Period1d, 5000)
	require.NoError(t, err)
	assert.Empty(t, candles)
	assert.Equal(t, "2000", size)
}

func TestFetchCandles_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","err-code":"invalid-parameter","err-msg":"invalid symbol"}`))
	})

	_, err := c.FetchCandles(context.Background(), "nopeusdt", models.Period1m, 10)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid-parameter", apiErr.Code)
}

func TestFetchCandles_HTTPStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchCandles(context.Background(), "btcusdt", models.Period1m, 10)

	var statusErr *xhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.Temporary())
}

func TestFetchCandles_MalformedBody(t *testing.T) {
	cases := map[string]string{
		"not json":     `<html>`,
		"no data":      `{"status":"ok"}`,
		"no timestamp": `{"status":"ok","data":[{"open":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.FetchCandles(context.Background(), "btcusdt", models.Period1m, 1)
			assert.Error(t, err)
		})
	}
}

func TestFetchCandles_UnsupportedPeriod(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.FetchCandles(context.Background(), "btcusdt", models.Period("2h"), 1)
	assert.True(t, errors.Is(err, ErrUnsupportedPeriod))
}

func TestFetchCandles_RateLimitedByContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":[]}`))
	}))
	defer srv.Close()
	c, err := newClient(srv.URL, xhttp.NewClient(), ratelimit.New(1, 0.001))
	require.NoError(t, err)

	_, err = c.FetchCandles(context.Background(), "btcusdt", models.Period1m, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.FetchCandles(ctx, "btcusdt", models.Period1m, 1)
	assert.ErrorIs(t, err, ratelimit.ErrThrottled)
}
