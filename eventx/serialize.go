package eventx

import (
	"encoding/json"
	"time"
)

// SerializableEvent represents an event in a serializable format
type SerializableEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// ToSerializable converts an event to a serializable format
func ToSerializable(event Event) (*SerializableEvent, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrSerializationFailed, err).
			WithDetail("event_id", event.ID()).
			WithDetail("event_type", event.Type())
	}
	return &SerializableEvent{
		ID:        event.ID(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Source:    event.Source(),
		Data:      data,
		Metadata:  event.Metadata(),
	}, nil
}

// ToJSON serializes an event to JSON
func ToJSON(event Event) ([]byte, error) {
	se, err := ToSerializable(event)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(se)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrSerializationFailed, err).
			WithDetail("event_id", event.ID())
	}
	return data, nil
}

// FromJSON deserializes a typed event from JSON
func FromJSON[T any](data []byte) (TypedEvent[T], error) {
	var se SerializableEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrSerializationFailed, err).
			WithDetail("operation", "unmarshal_serializable_event")
	}
	var payload T
	if err := json.Unmarshal(se.Data, &payload); err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrSerializationFailed, err).
			WithDetail("event_id", se.ID).
			WithDetail("event_type", se.Type)
	}
	return NewEventWithID(se.ID, se.Type, payload, se.Timestamp, EventOptions{
		Source:   se.Source,
		Metadata: se.Metadata,
	}), nil
}
