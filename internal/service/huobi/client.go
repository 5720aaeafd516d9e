package huobi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
	"CandleSync/internal/service/ratelimit"
	xhttp "CandleSync/pkg/http"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.huobi.pro"
	historyPath    = "/market/history/kline"
	// MaxSize is the largest page the history endpoint serves.
	MaxSize = 2000
)

// ErrUnsupportedPeriod is returned for periods the exchange has no kline for.
var ErrUnsupportedPeriod = errors.New("unsupported period")

var periodKeys = map[models.Period]string{
	models.Period1m:   "1min",
	models.Period5m:   "5min",
	models.Period15m:  "15min",
	models.Period30m:  "30min",
	models.Period1h:   "60min",
	models.Period4h:   "4hour",
	models.Period1d:   "1day",
	models.Period1w:   "1week",
	models.Period1mon: "1mon",
	models.Period1y:   "1year",
}

// APIError is an error status reported inside a 200 response.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("huobi: %s: %s", e.Code, e.Message)
}

// Client implements QuoteSource on the Huobi market history REST API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	host    string
}

// New creates a Huobi quote source. limiter may be nil.
func New(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) (drepo.QuoteSource, error) {
	return newClient(baseURL, xhttp.NewClient(xhttp.WithTimeout(timeout)), limiter)
}

func newClient(baseURL string, hc *xhttp.Client, limiter *ratelimit.Limiter) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("huobi base url: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		limiter: limiter,
		host:    u.Host,
	}, nil
}

func (c *Client) Name() string { return "huobi" }

// FetchCandles returns the latest count candles of symbol, newest first as
// served by the exchange.
func (c *Client) FetchCandles(ctx context.Context, symbol string, period models.Period, count int) ([]models.Candle, error) {
	key, ok := periodKeys[period]
	if !ok {
		return nil, fmt.Errorf("huobi: %w %q", ErrUnsupportedPeriod, period)
	}
	count = max(1, min(count, MaxSize))

	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return nil, fmt.Errorf("huobi: rate limit: %w", err)
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		URL: c.baseURL + historyPath,
		QueryParams: map[string][]string{
			"symbol": {strings.ToLower(symbol)},
			"period": {key},
			"size":   {strconv.Itoa(count)},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("huobi: %w", err)
	}
	return parseKlines(body)
}

func parseKlines(body []byte) ([]models.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("huobi: invalid json response")
	}
	res := gjson.ParseBytes(body)
	if status := res.Get("status").String(); status != "ok" {
		return nil, &APIError{Code: res.Get("err-code").String(), Message: res.Get("err-msg").String()}
	}

	data := res.Get("data")
	if !data.IsArray() {
		return nil, fmt.Errorf("huobi: response has no data array")
	}
	out := make([]models.Candle, 0, len(data.Array()))
	var parseErr error
	data.ForEach(func(_, k gjson.Result) bool {
		c := models.Candle{
			Timestamp: k.Get("id").Int(),
			Open:      k.Get("open").Float(),
			Close:     k.Get("close").Float(),
			High:      k.Get("high").Float(),
			Low:       k.Get("low").Float(),
			Volume:    k.Get("vol").Float(),
			Amount:    k.Get("amount").Float(),
			Count:     k.Get("count").Int(),
		}
		if !k.Get("id").Exists() || c.Timestamp <= 0 {
			parseErr = fmt.Errorf("huobi: kline without timestamp: %s", truncate(k.Raw))
			return false
		}
		out = append(out, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
