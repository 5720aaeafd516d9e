package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordRun("Success")
	r.RecordRun("Success")
	r.RecordRecords("btcusdt", "1h", 12)
	r.RecordError("fetch")
	r.RecordFetchPass(5, 2)
	r.RecordFetchPass(2, 0)
	r.RecordLatency("insert", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("Success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.recordsTotal.WithLabelValues("btcusdt", "1h")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchPasses))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchRequeued))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
