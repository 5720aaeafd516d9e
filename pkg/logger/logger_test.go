package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "sync"))

	log.Info("run finished", Int("records", 12), Duration("took", 1500*time.Millisecond), Error(errors.New("boom")))
	log.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run finished", entry["message"])
	assert.Equal(t, "sync", entry["component"])
	assert.EqualValues(t, 12, entry["records"])
	assert.EqualValues(t, 1500, entry["took"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestCollector_AggregatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	log := NewWithWriter(&bytes.Buffer{}, zerolog.InfoLevel)
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Error("fetch failed", String("series", "btcusdt@1h"))
	}
	log.Warn("slow store")
	log.Info("not collected")
	log.RemoveCollector()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, map[string]int{"fetch failed": 3, "slow store": 1}, counts)
}

func TestCollector_ThresholdForcesFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.AddLog("error", "c", nil, "x.go:3")
	c.Close()

	require.Len(t, pub.batches, 2)
	assert.ElementsMatch(t, []int{2, 1}, []int{len(pub.batches[0]), len(pub.batches[1])})
}
