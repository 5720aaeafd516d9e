package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CandleSync/internal/domain/models"
	"CandleSync/internal/usecase"
	"CandleSync/pkg/cache"
	"CandleSync/pkg/config"
	xhttp "CandleSync/pkg/http"
	applogger "CandleSync/pkg/logger"
	"CandleSync/pkg/scheduler"
)

type countingRunner struct {
	mu   sync.Mutex
	runs int
	ran  chan struct{}
}

func (r *countingRunner) Run(context.Context, models.SeriesConfig) models.RunResult {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return models.RunResult{Status: models.RunSuccess}
}

func testApp(t *testing.T, cron string, runOnStart bool) (*App, *countingRunner) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Sync.Cron = cron
	cfg.Sync.RunOnStart = runOnStart
	cfg.Server.ShutdownTimeout = 2 * time.Second

	l := applogger.Nop()
	store := cache.NewMemoryCache()
	t.Cleanup(func() { _ = store.Close() })
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	job := usecase.NewSyncJob(runner, models.SeriesConfig{"btcusdt": {models.Period1h}}, store, nil, l, time.Minute)
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithLogger(l))

	return New(cfg, l, scheduler.New(l), job, srv), runner
}

func TestApp_RunUntilCancelled(t *testing.T) {
	app, runner := testApp(t, "0 0 1 1 *", true)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- app.run(ctx) }()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("run on start did not trigger a sync")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.runs)
}

func TestApp_InvalidCron(t *testing.T) {
	app, runner := testApp(t, "every now and then", false)

	err := app.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candle-sync")
	assert.Zero(t, runner.runs)
}
