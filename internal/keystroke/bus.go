package keystroke

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler receives events published on a Bus.
type Handler func(Event)

// Bus is the shared keypress stream. Sources publish into it and every
// subscriber sees every event in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Handler
	order       []string
	listenHook  func(listening bool)
	closed      bool

	// hookMu serializes hook calls so listen/unlisten notifications arrive in order.
	hookMu sync.Mutex
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithListenHook registers a function called with true when the first
// subscriber attaches and with false when the last one leaves.
func WithListenHook(fn func(listening bool)) BusOption {
	return func(b *Bus) {
		b.listenHook = fn
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{subscribers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe attaches a handler and returns its subscriber ID.
func (b *Bus) Subscribe(h Handler) string {
	id := uuid.NewString()

	b.hookMu.Lock()
	defer b.hookMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return id
	}
	b.subscribers[id] = h
	b.order = append(b.order, id)
	first := len(b.subscribers) == 1
	total := len(b.subscribers)
	b.mu.Unlock()

	logrus.WithField("subscriber", id).Debugf("Key stream subscriber added, total %d", total)
	if first && b.listenHook != nil {
		b.listenHook(true)
	}
	return id
}

// Unsubscribe detaches a handler. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()

	b.mu.Lock()
	if _, ok := b.subscribers[id]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	last := len(b.subscribers) == 0
	b.mu.Unlock()

	logrus.WithField("subscriber", id).Debug("Key stream subscriber removed")
	if last && b.listenHook != nil {
		b.listenHook(false)
	}
}

// Publish delivers ev to a snapshot of the current subscribers, in
// subscription order. Handlers run on the caller's goroutine.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed || len(b.order) == 0 {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subscribers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Listening reports whether anyone is subscribed.
func (b *Bus) Listening() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) > 0
}

// SubscriberCount returns the number of attached handlers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close drops every subscriber. Later publishes and subscriptions are no-ops.
func (b *Bus) Close() {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	hadSubscribers := len(b.subscribers) > 0
	b.subscribers = make(map[string]Handler)
	b.order = nil
	b.mu.Unlock()

	if hadSubscribers && b.listenHook != nil {
		b.listenHook(false)
	}
	logrus.Debug("Key stream closed")
}
