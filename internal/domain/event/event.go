// Package event defines the Event domain entity: one immutable,
// cursor-ordered record appended to a run's event log.
package event

import (
	"encoding/json"
	"time"
)

// Well-known event types. Type is a free-form tag; these cover what the
// registry and the scripted executor emit.
const (
	TypeStatus   = "status"
	TypeProgress = "progress"
	TypeLog      = "log"
	TypeToolCall = "tool_call"
	TypeToken    = "token"
	TypeError    = "error"
)

// Event is a single record in a run's append-only log. Cursor starts at 0,
// is strictly increasing and gap-free within its feed, and doubles as the
// resumption point for ListSince and stream attaches.
type Event struct {
	Cursor int64           `json:"cursor"`
	Type   string          `json:"type"`
	TS     time.Time       `json:"ts"`
	Data   json.RawMessage `json:"data"`
}

// Envelope is the delivery wrapper used on the wire: SSE data frames and
// paginated history items both carry this shape.
type Envelope struct {
	Type string          `json:"type"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// Envelope returns the wire envelope for the event.
func (e Event) Envelope() Envelope {
	return Envelope{Type: e.Type, TS: e.TS, Data: e.Data}
}

// StatusData is the payload of status events appended by the run registry
// on every lifecycle transition.
type StatusData struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Reason   string  `json:"reason,omitempty"`
}

// ErrorData is the payload of error events emitted when a run fails.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MarshalData marshals a payload for Append, falling back to null on
// marshal failure so a bad payload never blocks the status transition
// that carries it.
func MarshalData(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
