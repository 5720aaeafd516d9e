package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
	"CandleSync/internal/service/ratelimit"

	gobinance "github.com/adshao/go-binance/v2"
)

// MaxLimit is the largest page the spot klines endpoint serves.
const MaxLimit = 1000

// ErrUnsupportedPeriod is returned for periods Binance has no interval for.
var ErrUnsupportedPeriod = errors.New("unsupported period")

var intervals = map[models.Period]string{
	models.Period1m:   "1m",
	models.Period5m:   "5m",
	models.Period15m:  "15m",
	models.Period30m:  "30m",
	models.Period1h:   "1h",
	models.Period4h:   "4h",
	models.Period1d:   "1d",
	models.Period1w:   "1w",
	models.Period1mon: "1M",
}

type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client implements QuoteSource on the Binance spot klines endpoint.
type Client struct {
	client  *gobinance.Client
	limiter *ratelimit.Limiter
}

// New creates a Binance quote source. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter) drepo.QuoteSource {
	return newClient(cfg, limiter)
}

func newClient(cfg Config, limiter *ratelimit.Limiter) *Client {
	c := gobinance.NewClient(cfg.APIKey, cfg.SecretKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		c.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.Timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{client: c, limiter: limiter}
}

func (c *Client) Name() string { return "binance" }

// FetchCandles returns the latest count klines of symbol. Binance serves at
// most MaxLimit per call, so larger counts are truncated to the newest page.
// Calls wait on the per-host limiter before hitting the exchange.
func (c *Client) FetchCandles(ctx context.Context, symbol string, period models.Period, count int) ([]models.Candle, error) {
	interval, ok := intervals[period]
	if !ok {
		return nil, fmt.Errorf("binance: %w %q", ErrUnsupportedPeriod, period)
	}
	if err := c.limiter.Wait(ctx, c.client.BaseURL); err != nil {
		return nil, fmt.Errorf("binance: rate limit: %w", err)
	}

	limit := max(1, min(count, MaxLimit))
	kls, err := c.client.NewKlinesService().
		Symbol(strings.ToUpper(strings.TrimSpace(symbol))).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
	}

	out := make([]models.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		candle, err := toCandle(kl)
		if err != nil {
			return nil, fmt.Errorf("binance: kline %d: %w", kl.OpenTime, err)
		}
		out = append(out, candle)
	}
	return out, nil
}

// toCandle maps a kline onto the stored layout: Volume is quote turnover and
// Amount is base volume.
func toCandle(kl *gobinance.Kline) (models.Candle, error) {
	var (
		c    = models.Candle{Timestamp: kl.OpenTime / 1000, Count: kl.TradeNum}
		errs []error
	)
	parse := func(name, s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return v
	}
	c.Open = parse("open", kl.Open)
	c.Close = parse("close", kl.Close)
	c.High = parse("high", kl.High)
	c.Low = parse("low", kl.Low)
	c.Volume = parse("quote volume", kl.QuoteAssetVolume)
	c.Amount = parse("volume", kl.Volume)
	return c, errors.Join(errs...)
}
