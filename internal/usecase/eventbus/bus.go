// Package eventbus is the in-process publish/subscribe hub for operation
// events.
package eventbus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"filedeck/internal/domain"
)

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

// Bus delivers each event to its subscribers on separate goroutines.
type Bus struct {
	mu     sync.RWMutex
	byType map[domain.EventType][]subscription
	all    []subscription
	counts map[domain.EventType]uint64

	nextID atomic.Uint64
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

var _ domain.EventBus = (*Bus)(nil)

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		byType: make(map[domain.EventType][]subscription),
		counts: make(map[domain.EventType]uint64),
		logger: logger,
	}
}

// Publish hands event to every matching subscriber. Handlers receive a
// context that keeps ctx's values but is never cancelled, since they usually
// outlive the request that published the event. Handler panics are logged.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.counts[event.Type]++
	subs := make([]subscription, 0, len(b.byType[event.Type])+len(b.all))
	subs = append(subs, b.byType[event.Type]...)
	subs = append(subs, b.all...)
	// Add while holding mu; Close flips closed under the same lock.
	b.wg.Add(len(subs))
	b.mu.Unlock()

	hctx := context.WithoutCancel(ctx)
	for _, sub := range subs {
		go b.deliver(hctx, event, sub.handler)
	}
}

func (b *Bus) deliver(ctx context.Context, event domain.Event, h domain.EventHandler) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", string(event.Type), "panic", r)
		}
	}()
	h(ctx, event)
}

// Subscribe registers handler for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	sub := subscription{id: b.nextID.Add(1), handler: handler}

	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.byType[eventType] = without(b.byType[eventType], sub.id)
		b.mu.Unlock()
	}
}

// SubscribeAll registers handler for every event type and returns its
// unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	sub := subscription{id: b.nextID.Add(1), handler: handler}

	b.mu.Lock()
	b.all = append(b.all, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.all = without(b.all, sub.id)
		b.mu.Unlock()
	}
}

func without(subs []subscription, id uint64) []subscription {
	return slices.DeleteFunc(slices.Clone(subs), func(s subscription) bool { return s.id == id })
}

// Counts returns how many events of each type have been published.
func (b *Bus) Counts() map[domain.EventType]uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[domain.EventType]uint64, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.all)
	for _, subs := range b.byType {
		n += len(subs)
	}
	return n
}

// Close stops accepting events and waits for in-flight handlers. It is
// idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}
