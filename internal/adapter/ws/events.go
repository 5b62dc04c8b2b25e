package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventRunStatus = "run.status"
	EventRunEvent  = "run.event"
)

// RunStatusEvent is broadcast when a run's status or progress changes.
type RunStatusEvent struct {
	RunID    string  `json:"run_id"`
	ScopeID  string  `json:"scope_id,omitempty"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// BroadcastEvent marshals a typed event and broadcasts it. It satisfies
// the broadcast port.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
