// Package sse streams event feeds to clients over Server-Sent Events.
// A stream replays history from the requested cursor, then switches to
// live delivery with no gap and no duplicate. The event id field carries
// the cursor so clients resume with from_cursor after a disconnect.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
)

const defaultKeepAlive = 15 * time.Second

// Handler serves one feed per request from the event log.
type Handler struct {
	log       eventlog.Log
	keepAlive time.Duration
}

func NewHandler(log eventlog.Log, keepAlive time.Duration) *Handler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &Handler{log: log, keepAlive: keepAlive}
}

// ServeFeed streams the feed to the client until it disconnects. The
// from_cursor query parameter selects where replay starts; absent or
// malformed means the beginning of the feed.
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request, feed string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	from, _ := strconv.ParseInt(r.URL.Query().Get("from_cursor"), 10, 64)
	if from < 0 {
		from = 0
	}

	ctx := r.Context()
	sub, err := h.log.Subscribe(ctx, feed, from)
	if err != nil {
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	slog.DebugContext(ctx, "stream opened", "feed", feed, "from_cursor", from)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeFrame(w, ev); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(h.keepAlive)
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, ev event.Event) error {
	data, err := json.Marshal(ev.Envelope())
	if err != nil {
		data = []byte(`{}`)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Cursor, ev.Type, data)
	return err
}
