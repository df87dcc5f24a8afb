package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types emitted by the request engine.
const (
	RequestCreated   = "request.created"
	RequestAccepted  = "request.accepted"
	RequestDeclined  = "request.declined"
	RequestCancelled = "request.cancelled"
)

// RequestEvent records one committed request transition.
type RequestEvent struct {
	// ID uniquely identifies this event
	ID uuid.UUID `json:"id"`

	// Type is one of the request.* constants
	Type string `json:"type"`

	// RequestID is the request that moved
	RequestID uuid.UUID `json:"request_id"`

	// Payload holds event-specific data as JSON
	Payload jsoniter.RawMessage `json:"payload"`

	// CreatedAt is when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// TransitionPayload is the payload of every request.* event.
type TransitionPayload struct {
	ActingUser       uuid.UUID  `json:"acting_user"`
	RequestFrom      uuid.UUID  `json:"request_from"`
	RequestTo        uuid.UUID  `json:"request_to"`
	RequestedEntryID uuid.UUID  `json:"requested_entry_id"`
	TradedEntryID    *uuid.UUID `json:"traded_entry_id,omitempty"`
	Status           string     `json:"status"`
	// Superseded is set when the request was declined because another
	// acceptance moved one of its books.
	Superseded bool `json:"superseded,omitempty"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *RequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewRequestEvent creates an event with a JSON-encoded payload.
func NewRequestEvent(eventType string, requestID uuid.UUID, payload interface{}) (*RequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &RequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		RequestID: requestID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler consumes request events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *RequestEvent) error
}

// EventEmitter publishes request events.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *RequestEvent) error
}
