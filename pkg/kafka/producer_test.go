package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_EncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "runs", []byte("k"), map[string]int{"records": 3}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))
	require.NoError(t, p.PublishBatch(context.Background(), "runs", nil))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "runs", w.msgs[0].Topic)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	assert.JSONEq(t, `{"records":3}`, string(w.msgs[0].Value))
	assert.Equal(t, "plain", string(w.msgs[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WrapsWriteErrors(t *testing.T) {
	cause := errors.New("leader not available")
	p := newProducer(&fakeWriter{err: cause}, "gzip")

	err := p.Publish(context.Background(), "runs", nil, []byte("x"))
	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "runs")
}

func TestProducer_UnencodableValue(t *testing.T) {
	p := newProducer(&fakeWriter{}, "gzip")
	err := p.Publish(context.Background(), "runs", nil, make(chan int))
	assert.ErrorContains(t, err, "marshal value")
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}
