package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain/event"
)

type frame struct {
	id    string
	event string
	data  string
}

// readFrame consumes one SSE frame, skipping keep-alive comments.
func readFrame(t *testing.T, rd *bufio.Reader) frame {
	t.Helper()
	var f frame
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && f.id != "":
			return f
		case line == "" || strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "id: "):
			f.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, url string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s", ct)
	}
	return bufio.NewReader(resp.Body), cancel
}

func TestStreamReplaysThenFollowsLive(t *testing.T) {
	log := memory.NewEventLog()
	ctx := context.Background()
	for i := range 3 {
		data := []byte(fmt.Sprintf(`{"line":"l%d"}`, i))
		if _, err := log.Append(ctx, "run_1", event.TypeLog, data); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHandler(log, time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeFeed(w, r, "run_1")
	}))
	defer srv.Close()

	rd, cancel := openStream(t, srv.URL+"?from_cursor=1")
	defer cancel()

	// Replay: cursors 1 and 2, skipping 0.
	for _, want := range []string{"1", "2"} {
		f := readFrame(t, rd)
		if f.id != want {
			t.Fatalf("frame id = %s, want %s", f.id, want)
		}
		if f.event != event.TypeLog {
			t.Fatalf("frame event = %s", f.event)
		}
		var env event.Envelope
		if err := json.Unmarshal([]byte(f.data), &env); err != nil {
			t.Fatalf("bad envelope %q: %v", f.data, err)
		}
		if env.Type != event.TypeLog || env.TS.IsZero() {
			t.Fatalf("envelope = %+v", env)
		}
	}

	// Live: an append after attach arrives on the same stream.
	if _, err := log.Append(ctx, "run_1", event.TypeStatus, []byte(`{"status":"running"}`)); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, rd)
	if f.id != "3" || f.event != event.TypeStatus {
		t.Fatalf("live frame = %+v", f)
	}
}

func TestStreamFromStartByDefault(t *testing.T) {
	log := memory.NewEventLog()
	if _, err := log.Append(context.Background(), "run_1", event.TypeLog, nil); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(log, time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeFeed(w, r, "run_1")
	}))
	defer srv.Close()

	rd, cancel := openStream(t, srv.URL+"?from_cursor=garbage")
	defer cancel()

	if f := readFrame(t, rd); f.id != "0" {
		t.Fatalf("frame id = %s, want 0", f.id)
	}
}

func TestStreamKeepAlive(t *testing.T) {
	log := memory.NewEventLog()
	h := NewHandler(log, 20*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeFeed(w, r, "run_idle")
	}))
	defer srv.Close()

	rd, cancel := openStream(t, srv.URL)
	defer cancel()

	line, err := rd.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, ": keep-alive") {
		t.Fatalf("first idle line = %q, want keep-alive comment", line)
	}
}

func TestStreamEndsWhenClientDisconnects(t *testing.T) {
	log := memory.NewEventLog()
	h := NewHandler(log, 10*time.Millisecond)

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeFeed(w, r, "run_1")
		close(done)
	}))
	defer srv.Close()

	_, cancel := openStream(t, srv.URL)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}
