package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loan-desk-backend/internal/logfields"
)

// DefaultNotifyWait bounds how long Notify waits for slow subscribers.
const DefaultNotifyWait = 2 * time.Second

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event broker is closed")

// Broker is an in-process fan-out of events. Publish blocks until every
// subscriber has accepted the event or ctx is done.
type Broker struct {
	mu        sync.RWMutex
	subs      map[uint64]chan Event
	nextID    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan Event)}
}

// Subscribe returns a channel receiving every published event and a
// function that unsubscribes and closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID.Add(1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) Publish(ctx context.Context, evt Event) error {
	if evt == nil {
		return errors.New("event cannot be nil")
	}
	if b.closed.Load() {
		return ErrClosed
	}

	// Holding the read lock keeps unsubscribe from closing a channel
	// while it is being sent on.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", evt.EventName(), ctx.Err())
		}
	}
	return nil
}

// Notify publishes evt, waiting at most DefaultNotifyWait, and logs a
// failed delivery instead of returning it.
func (b *Broker) Notify(ctx context.Context, evt Event) {
	ctx, cancel := context.WithTimeout(ctx, DefaultNotifyWait)
	defer cancel()
	if err := b.Publish(ctx, evt); err != nil && !errors.Is(err, ErrClosed) {
		slog.Warn("Event not delivered to every subscriber",
			slog.String("event", evt.EventName()), logfields.Error(err))
	}
}

// Close closes every subscription channel.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.mu.Lock()
		defer b.mu.Unlock()
		for id, ch := range b.subs {
			close(ch)
			delete(b.subs, id)
		}
	})
}
