package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/segmentio/kafka-go"

	"sharedref/domain/ownership"
)

// ErrClosed is returned by a Producer after Close.
var ErrClosed = errors.New("kafka: producer closed")

// Producer publishes to one topic through a kafka.Writer that may be
// shared with other producers. The writer is closed when the last
// producer sharing it is closed.
type Producer struct {
	mu     *sync.Mutex
	writer ownership.Shared[kafka.Writer]
}

func NewProducer(brokers []string, topic string, log logr.Logger, opts ...ownership.Option) (*Producer, error) {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}, log, opts...)
}

// NewProducerWithWriter takes ownership of w.
func NewProducerWithWriter(w *kafka.Writer, log logr.Logger, opts ...ownership.Option) (*Producer, error) {
	shared, err := ownership.NewWithDeleter(w, closeWriter(log), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "kafka: share writer")
	}
	return &Producer{mu: &sync.Mutex{}, writer: shared}, nil
}

func closeWriter(log logr.Logger) func(*kafka.Writer) {
	return func(w *kafka.Writer) {
		if err := w.Close(); err != nil {
			log.Error(err, "close kafka writer", "topic", w.Topic)
		}
	}
}

// Share returns another producer on the same writer.
func (p *Producer) Share() (*Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.writer.Valid() {
		return nil, ErrClosed
	}
	return &Producer{mu: p.mu, writer: p.writer.Clone()}, nil
}

// Writers returns how many producers share the writer.
func (p *Producer) Writers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.UseCount()
}

func (p *Producer) Send(
	ctx context.Context,
	key []byte,
	value []byte,
) error {
	p.mu.Lock()
	w := p.writer.Clone()
	p.mu.Unlock()
	if !w.Valid() {
		return ErrClosed
	}
	defer func() {
		p.mu.Lock()
		w.Release()
		p.mu.Unlock()
	}()

	return w.Get().WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Publish lets a Producer feed a broadcaster.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	return p.Send(ctx, key, value)
}

// Close releases this producer's share of the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer.Release()
	return nil
}
