package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const TypeToolTrace = "tool_trace"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "tool_trace").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// envelope is the wire form shared by the in-process bus and NATS.
type envelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func Marshal(e Event) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       e.EventType(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp().UTC(),
	})
}

func Unmarshal(data []byte) (BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return BaseEvent{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return BaseEvent{}, fmt.Errorf("decode event envelope: missing type")
	}
	if env.Data == nil {
		env.Data = map[string]interface{}{}
	}
	return BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}

// ToolTrace records one data lookup performed during a chat turn.
type ToolTrace struct {
	SessionID string
	Tool      string
	Query     string
	Params    map[string]interface{}
	Results   int
	Duration  time.Duration
	Err       error
	At        time.Time
}

func (t ToolTrace) Event() BaseEvent {
	data := map[string]interface{}{
		"session_id":  t.SessionID,
		"tool":        t.Tool,
		"query":       t.Query,
		"results":     t.Results,
		"duration_ms": t.Duration.Milliseconds(),
	}
	if len(t.Params) > 0 {
		data["params"] = t.Params
	}
	if t.Err != nil {
		data["error"] = t.Err.Error()
	}
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{Type: TypeToolTrace, Data: data, OccurredAt: at}
}
