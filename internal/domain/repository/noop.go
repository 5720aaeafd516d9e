package repository

import (
	"context"

	"CandleSync/internal/domain/models"
)

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordRun(string)                  {}
func (NoopMetrics) RecordRecords(string, string, int) {}
func (NoopMetrics) RecordError(string)                {}
func (NoopMetrics) RecordFetchPass(int, int)          {}
func (NoopMetrics) RecordLatency(string, float64)     {}

// NoopPublisher drops reports. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishReport(context.Context, models.RunReport) error { return nil }
func (NoopPublisher) Close() error                                         { return nil }
