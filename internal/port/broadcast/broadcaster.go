// Package broadcast defines the port for pushing fire-and-forget status
// notifications to connected UI clients. The resumable event stream is the
// SSE dispatcher; this port is the best-effort side channel.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
