// Package logbus delivers process log lines to in-process subscribers.
package logbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Stream names carried on Event.Stream.
const (
	StreamOut = "out"
	StreamErr = "err"
)

// Event is one line of process output.
type Event struct {
	Process string
	Stream  string
	Text    string
	Time    time.Time
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous pub-sub bus. Handlers run on the publisher's
// goroutine in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	logger log.Logger
}

// NewBus creates an empty bus. Handler panics are logged to logger.
func NewBus(logger log.Logger) *Bus {
	if logger == nil {
		logger = log.Nop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler and returns an id for Unsubscribe.
func (b *Bus) Subscribe(handler Handler) uint64 {
	id := b.nextID.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish hands ev to every current subscriber. A panicking handler is
// recovered and does not stop delivery to the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.safeCall(s.handler, ev)
	}
}

func (b *Bus) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), fmt.Errorf("panic: %v", r), "log bus handler panicked",
				"process", ev.Process,
				"stream", ev.Stream,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ev)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
