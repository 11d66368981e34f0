package eventx

import (
	"context"
	"reflect"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// EventHandler is a function that processes events
type EventHandler func(ctx context.Context, e Event) error

// TypedEventHandler provides type-safe event handling
type TypedEventHandler[T any] func(ctx context.Context, e TypedEvent[T]) error

// EventBus defines the interface for event bus implementations
type EventBus interface {
	// Subscribe registers a handler for an event type, or AllEvents
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes the handlers of an event type
	Unsubscribe(eventType string) error

	// Publish delivers an event to its handlers
	Publish(ctx context.Context, event Event) error

	// HandlerCount returns the number of handlers for an event type
	HandlerCount(eventType string) int

	// Close stops delivery
	Close() error
}

// SubscribeTyped registers a typed event handler
func SubscribeTyped[T any](bus EventBus, eventType string, handler TypedEventHandler[T]) error {
	return bus.Subscribe(eventType, func(ctx context.Context, e Event) error {
		if typed, ok := e.(TypedEvent[T]); ok {
			return handler(ctx, typed)
		}
		return ErrorRegistry.New(ErrInvalidEventType).
			WithDetail("expected_type", reflect.TypeOf((*T)(nil)).Elem().String()).
			WithDetail("actual_type", reflect.TypeOf(e.Payload()).String())
	})
}
