package status

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fitsched/schedule-crawler/internal/metrics"
)

// Emitter is the write side of the status stream.
type Emitter interface {
	Publish(Event)
}

// Config tunes broadcaster behavior.
type Config struct {
	// SubscriberBuffer is the per-subscriber channel capacity.
	SubscriberBuffer int
}

func (c Config) withDefaults() Config {
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
	return c
}

// Subscriber is one attached consumer of the status stream.
type Subscriber struct {
	ch chan Event
}

// Events returns the subscriber's receive channel. The channel is closed
// when the subscriber is detached or the broadcaster shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans status events out to any number of subscribers with
// at-most-once delivery. A subscriber that cannot keep up is detached so
// it never blocks the crawl or the other subscribers.
type Broadcaster struct {
	cfg      Config
	logger   *zap.Logger
	snapshot func() Event

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool

	dropped atomic.Uint64
}

// NewBroadcaster creates a Broadcaster. snapshot, when non-nil, supplies
// the synthetic first event delivered to every new subscriber so late
// joiners immediately learn the current run state.
func NewBroadcaster(cfg Config, snapshot func() Event, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		snapshot: snapshot,
		subs:     make(map[*Subscriber]struct{}),
	}
}

// Subscribe attaches a new consumer. The returned subscriber already holds
// the synthetic status event describing the current aggregate state.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, b.cfg.SubscriberBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	if b.snapshot != nil {
		ev := b.snapshot()
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		sub.ch <- ev
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish delivers ev to every current subscriber without blocking. A
// subscriber whose buffer is full is detached; delivery to the remaining
// subscribers proceeds. With no subscribers this is a no-op.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, sub)
			close(sub.ch)
			b.dropped.Add(1)
			metrics.ObserveDroppedEvent()
			b.logger.Warn("status subscriber fell behind, detaching",
				zap.String("event_type", string(ev.Type)),
				zap.Int("buffer", b.cfg.SubscriberBuffer))
		}
	}
}

// Close detaches all subscribers and rejects future publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount reports how many subscribers are attached.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped reports how many subscribers have been detached for falling
// behind since the broadcaster was created.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
