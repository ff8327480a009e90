package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrBufferFull = errors.New("events: publish buffer full")
	ErrClosed     = errors.New("events: producer closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers events in memory and writes them from one goroutine, so
// a slow broker never holds up a request.
type Producer struct {
	w        messageWriter
	producer string
	errorLog *log.Logger
	closeCh  chan struct{}

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
}

func NewProducer(brokers []string, topic, producer string, buf int, errorLog *log.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(w, producer, buf, errorLog)
}

func newProducer(w messageWriter, producer string, buf int, errorLog *log.Logger) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:        w,
		producer: producer,
		errorLog: errorLog,
		inbox:    make(chan kafka.Message, buf),
		closeCh:  make(chan struct{}),
	}
}

// Start runs the writer loop until Close is called, then flushes what is
// left in the buffer.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.errorLog.Printf("events: close writer: %v", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.errorLog.Printf("events: write %s: %v", m.Key, err)
	}
}

func (p *Producer) Publish(ctx context.Context, eventType, correlationID string, payload any) error {
	env, err := NewEnvelope(p.producer, eventType, correlationID, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(correlationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events; later calls to Publish return ErrClosed.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the buffer has been flushed.
func (p *Producer) WaitClosed() { <-p.closeCh }
