// Package eventbus provides an in-process pub/sub bus for domain events.
// Publishers never wait on subscribers; one consumer goroutine dispatches
// events to every subscriber in order.
package eventbus

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
)

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is a buffered in-process event bus.
type Bus struct {
	log logr.Logger

	mu          sync.RWMutex
	subscribers []namedHandler
	closed      bool

	events   chan event.DomainEvent
	done     chan struct{}
	stopOnce sync.Once
	onDrop   func(event.DomainEvent)
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a Bus with the given channel buffer size.
func New(bufSize int, log logr.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		log:    log.WithName("eventbus"),
		events: make(chan event.DomainEvent, bufSize),
		done:   make(chan struct{}),
	}
}

// OnDrop registers a callback for events dropped on a full buffer.
// Must be called before Start.
func (b *Bus) OnDrop(fn func(event.DomainEvent)) {
	b.onDrop = fn
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish queues an event. It never blocks: if the buffer is full or the bus
// is stopped the event is dropped.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.log.Info("buffer full, dropping event", "type", evt.EventType, "id", evt.ID)
		if b.onDrop != nil {
			b.onDrop(evt)
		}
	}
}

// Start runs the consumer goroutine until Stop is called or ctx ends.
// Queued events are drained before the goroutine exits.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.close()
				for evt := range b.events {
					b.dispatch(context.WithoutCancel(ctx), evt)
				}
				return
			}
		}
	}()
}

// Stop closes the bus and waits for queued events to be dispatched.
// Start must have been called.
func (b *Bus) Stop() {
	b.close()
	<-b.done
}

func (b *Bus) close() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.events)
		b.mu.Unlock()
	})
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error(err, "handler failed", "handler", s.name, "type", evt.EventType)
		}
	}
}
