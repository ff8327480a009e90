package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *memWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "bookshop-web", 8, log.New(io.Discard, "", 0))
	p.Start()

	require.NoError(t, p.Publish(context.Background(), OrderPlaced, "o1", OrderPayload{OrderID: "o1", Total: 10}))
	require.NoError(t, p.Publish(context.Background(), OrderConfirmed, "o1", OrderPayload{OrderID: "o1"}))
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, []byte("o1"), w.msgs[0].Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, OrderPlaced, env.EventType)
	assert.Equal(t, "bookshop-web", env.Producer)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	var payload OrderPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 10.0, payload.Total)
}

func TestPublishReportsFullBuffer(t *testing.T) {
	p := newProducer(&memWriter{}, "web", 1, log.New(io.Discard, "", 0))

	require.NoError(t, p.Publish(context.Background(), OrderPlaced, "o1", nil))
	assert.ErrorIs(t, p.Publish(context.Background(), OrderPlaced, "o2", nil), ErrBufferFull)
}

func TestPublishAfterClose(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "web", 4, log.New(io.Discard, "", 0))
	p.Start()
	p.Close()
	p.WaitClosed()

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, p.Publish(context.Background(), ShipmentCreated, "o1", nil), ErrClosed)
	})
	assert.NotPanics(t, p.Close)
	assert.Empty(t, w.msgs)
}
