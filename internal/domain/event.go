package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventFileListed      EventType = "file.listed"
	EventFileCounted     EventType = "file.counted"
	EventFileMoved       EventType = "file.moved"
	EventFileRenamed     EventType = "file.renamed"
	EventFilePreviewed   EventType = "file.previewed"
	EventSettingsLoaded  EventType = "settings.loaded"
	EventSettingsSaved   EventType = "settings.saved"
	EventOperationFailed EventType = "operation.failed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with the current time and the request ID
// carried by ctx. A payload that fails to marshal is dropped.
func NewEvent(ctx context.Context, typ EventType, payload any) Event {
	e := Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		RequestID: RequestIDFromContext(ctx),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	Close()
}
