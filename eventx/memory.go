package eventx

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus delivers events synchronously in process, in subscription
// order. A failing handler does not stop delivery to the others.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	closed   bool
}

var _ EventBus = (*MemoryBus)(nil)

// NewMemoryBus creates an empty bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]EventHandler)}
}

func (b *MemoryBus) Subscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrorRegistry.New(ErrBusClosed)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *MemoryBus) Unsubscribe(eventType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, eventType)
	return nil
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrorRegistry.New(ErrBusClosed)
	}
	handlers := append([]EventHandler{}, b.handlers[event.Type()]...)
	handlers = append(handlers, b.handlers[AllEvents]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ErrorRegistry.NewWithCause(ErrHandlerFailed, errors.Join(errs...)).
			WithDetail("event_type", event.Type()).
			WithDetail("failed", len(errs))
	}
	return nil
}

func (b *MemoryBus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]EventHandler)
	return nil
}
