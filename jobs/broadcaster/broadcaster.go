package broadcaster

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"sharedref/domain/ownership"
	"sharedref/infra/events"
	"sharedref/infra/memory"
)

// Publisher delivers one encoded event.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// Config for a Broadcaster. Zero fields take defaults.
type Config struct {
	RingSize uint64
	Interval time.Duration
	Log      logr.Logger
}

// Broadcaster is an ownership.Observer that buffers lifecycle events in a
// ring and publishes them from a separate goroutine. Observe and Flush
// may run concurrently; two goroutines must not Observe at once.
type Broadcaster struct {
	ring     *memory.RetireRing
	pub      Publisher
	interval time.Duration
	log      logr.Logger

	pending *ownership.Event
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(pub Publisher, cfg Config) *Broadcaster {
	if cfg.RingSize == 0 {
		cfg.RingSize = 1 << 12
	}
	if cfg.Interval == 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		ring:     memory.NewRetireRing(cfg.RingSize),
		pub:      pub,
		interval: cfg.Interval,
		log:      cfg.Log,
	}
}

// Observe queues e. When the ring is full the event is dropped and
// counted.
func (b *Broadcaster) Observe(e ownership.Event) {
	if !b.ring.Enqueue(e) {
		b.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full ring.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

// Sent returns the number of events published.
func (b *Broadcaster) Sent() uint64 { return b.sent.Load() }

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run flushes on every tick until ctx is cancelled, then flushes once
// more with a fresh context bounded by the interval.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", "interval", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), b.interval)
			if err := b.Flush(final); err != nil {
				b.log.Error(err, "final flush failed")
			}
			cancel()
			b.log.Info("broadcaster stopped", "sent", b.Sent(), "dropped", b.Dropped())
			return
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.log.Error(err, "flush failed")
			}
		}
	}
}

// Flush publishes every queued event. On a publish error the failed
// event is kept and retried first on the next flush.
func (b *Broadcaster) Flush(ctx context.Context) error {
	for {
		e, ok := b.next()
		if !ok {
			return nil
		}
		payload, err := events.Encode(e)
		if err != nil {
			// not retryable
			b.log.Error(err, "dropping unencodable event", "block", e.Block)
			b.dropped.Add(1)
			continue
		}
		if err := b.pub.Publish(ctx, events.Key(e), payload); err != nil {
			b.pending = &e
			return errors.Wrapf(err, "publish %s for block %d", e.Kind, e.Block)
		}
		b.sent.Add(1)
	}
}

func (b *Broadcaster) next() (ownership.Event, bool) {
	if b.pending != nil {
		e := *b.pending
		b.pending = nil
		return e, true
	}
	v := b.ring.Dequeue()
	if v == nil {
		return ownership.Event{}, false
	}
	return v.(ownership.Event), true
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}

// SaramaPublisher publishes through a sarama SyncProducer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaPublisher dials brokers with acks from all in-sync replicas.
func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create sarama producer")
	}
	return WrapSyncProducer(producer, topic), nil
}

// WrapSyncProducer publishes through an existing producer, which the
// publisher then owns.
func WrapSyncProducer(p sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: p, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
