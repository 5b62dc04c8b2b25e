package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/config"
	"github.com/Strob0t/DevPlane/internal/domain"
)

func testPoolConfig(dsn string) config.Postgres {
	return config.Postgres{
		DSN:             dsn,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 10 * time.Minute,
		HealthCheck:     time.Minute,
	}
}

// testLog connects to Postgres or skips the test if DATABASE_URL is not set.
func testLog(t *testing.T) *EventLog {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := NewPool(ctx, testPoolConfig(dsn))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewEventLog(pool)
}

func TestEventLogAppendAssignsGapFreeCursors(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	feed := "run_" + uuid.NewString()

	for i := range 5 {
		cursor, err := log.Append(ctx, feed, "log", []byte(fmt.Sprintf(`{"n":%d}`, i)))
		if err != nil {
			t.Fatal(err)
		}
		if cursor != int64(i) {
			t.Fatalf("cursor = %d, want %d", cursor, i)
		}
	}

	events, next, err := log.ListSince(ctx, feed, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Cursor != 2 || events[1].Cursor != 3 {
		t.Fatalf("window = %+v", events)
	}
	if next != 4 {
		t.Errorf("next = %d, want 4", next)
	}
}

func TestEventLogCloseSemantics(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	feed := "run_" + uuid.NewString()

	if _, err := log.Append(ctx, feed, "log", nil); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(ctx, feed); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(ctx, feed); err != nil {
		t.Fatal("second close must be a no-op")
	}

	if _, err := log.Append(ctx, feed, "log", nil); !errors.Is(err, domain.ErrRunTerminated) {
		t.Fatalf("append after close: got %v, want ErrRunTerminated", err)
	}

	events, _, err := log.ListSince(ctx, feed, 0, 0)
	if err != nil || len(events) != 1 {
		t.Fatalf("history after close: %v, %d events", err, len(events))
	}
}

func TestEventLogSubscribeReplayThenLive(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	feed := "run_" + uuid.NewString()

	for range 3 {
		if _, err := log.Append(ctx, feed, "log", nil); err != nil {
			t.Fatal(err)
		}
	}

	sub, err := log.Subscribe(ctx, feed, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	for _, want := range []int64{1, 2} {
		select {
		case ev := <-sub.C():
			if ev.Cursor != want {
				t.Fatalf("replay cursor = %d, want %d", ev.Cursor, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for replay")
		}
	}

	if _, err := log.Append(ctx, feed, "status", []byte(`{"status":"running"}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-sub.C():
		if ev.Cursor != 3 {
			t.Fatalf("live cursor = %d, want 3", ev.Cursor)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for live event")
	}
}
