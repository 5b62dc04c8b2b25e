// Package eventlog defines the port interface for the append-only,
// cursor-ordered event log. Feeds are keyed by an opaque scope id (a run
// id, or a session/workflow id for merged fan-out); cursors are assigned
// per feed, start at 0, and are gap-free.
package eventlog

import (
	"context"

	"github.com/Strob0t/DevPlane/internal/domain/event"
)

// Log is the port interface for appending and tailing events.
type Log interface {
	// Append assigns the next cursor for the feed, stores the event and
	// wakes any attached subscribers. Returns domain.ErrRunTerminated once
	// the feed has been closed.
	Append(ctx context.Context, feed string, typ string, data []byte) (int64, error)

	// ListSince returns events with cursor >= from, oldest first, capped at
	// limit. next is the cursor to resume from: last returned cursor + 1,
	// or from unchanged when nothing new exists yet.
	ListSince(ctx context.Context, feed string, from int64, limit int) (events []event.Event, next int64, err error)

	// Subscribe atomically snapshots the backlog from the given cursor and
	// registers for live delivery, so the replay-to-live handoff has no
	// duplicate and no gap. The subscription must be closed by the caller.
	Subscribe(ctx context.Context, feed string, from int64) (Subscription, error)

	// Close marks the feed terminal; subsequent Appends fail with
	// domain.ErrRunTerminated. Closing an already closed feed is a no-op.
	Close(ctx context.Context, feed string) error
}

// Subscription is a live tail over one feed. Events arrive in cursor order
// on C; the channel is closed when the subscription is cancelled.
type Subscription interface {
	C() <-chan event.Event
	Cancel()
}
