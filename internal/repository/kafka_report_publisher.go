package repository

import (
	"context"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"
	pkgkafka "CandleSync/pkg/kafka"
)

// MessagePublisher is the producer side used for reports.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaReportPublisher publishes run reports keyed by run id.
type KafkaReportPublisher struct {
	producer MessagePublisher
	topic    string
}

// NewKafkaReportPublisher creates Kafka publisher.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) drepo.ReportPublisher {
	return newKafkaReportPublisher(producer, topic)
}

func newKafkaReportPublisher(producer MessagePublisher, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) PublishReport(ctx context.Context, report models.RunReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(report.RunID), report)
}

// Close is a no-op; the producer is shared with the log collector and closed
// by the app.
func (p *KafkaReportPublisher) Close() error { return nil }
