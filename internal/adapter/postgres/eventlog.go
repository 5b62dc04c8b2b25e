package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
)

// EventLog implements eventlog.Log on PostgreSQL. Rows are the durable
// record; live subscriber fan-out is in-process, so streams attach to the
// instance that runs the executors. Cursor assignment is serialized per
// feed with an in-process lock, matching the single-writer discipline of
// the run registry.
type EventLog struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	feeds map[string]*feedRuntime
}

type feedRuntime struct {
	mu   sync.Mutex
	subs map[*pgSubscription]struct{}
}

func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{
		pool:  pool,
		feeds: make(map[string]*feedRuntime),
	}
}

func (l *EventLog) feed(name string) *feedRuntime {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.feeds[name]
	if !ok {
		f = &feedRuntime{subs: make(map[*pgSubscription]struct{})}
		l.feeds[name] = f
	}
	return f
}

// Append inserts the event with the feed's next cursor and fans it out to
// live subscribers. Appending to a closed feed fails with RunTerminated.
func (l *EventLog) Append(ctx context.Context, feed, typ string, data []byte) (int64, error) {
	f := l.feed(feed)
	f.mu.Lock()
	defer f.mu.Unlock()

	var closed bool
	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT closed FROM event_feeds WHERE feed = $1), FALSE)`, feed).Scan(&closed)
	if err != nil {
		return 0, fmt.Errorf("check feed %s: %w", feed, err)
	}
	if closed {
		return 0, domain.ErrRunTerminated
	}

	var ev event.Event
	ev.Type = typ
	ev.Data = data
	err = l.pool.QueryRow(ctx,
		`INSERT INTO run_events (feed, cursor, event_type, payload)
		 VALUES ($1, COALESCE((SELECT MAX(cursor) + 1 FROM run_events WHERE feed = $1), 0), $2, $3)
		 RETURNING cursor, created_at`,
		feed, typ, data).Scan(&ev.Cursor, &ev.TS)
	if err != nil {
		return 0, fmt.Errorf("append event to %s: %w", feed, err)
	}

	for sub := range f.subs {
		sub.push(ev)
	}
	return ev.Cursor, nil
}

// ListSince returns up to limit events with cursor >= from. The returned
// next cursor resumes after the last event, or echoes from when the window
// is empty.
func (l *EventLog) ListSince(ctx context.Context, feed string, from int64, limit int) ([]event.Event, int64, error) {
	if from < 0 {
		from = 0
	}
	q := `SELECT cursor, event_type, payload, created_at FROM run_events
	      WHERE feed = $1 AND cursor >= $2 ORDER BY cursor ASC`
	args := []any{feed, from}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events for %s: %w", feed, err)
	}
	defer rows.Close()

	events := make([]event.Event, 0)
	for rows.Next() {
		var ev event.Event
		if err := rows.Scan(&ev.Cursor, &ev.Type, &ev.Data, &ev.TS); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	next := from
	if len(events) > 0 {
		next = events[len(events)-1].Cursor + 1
	}
	return events, next, nil
}

// Subscribe snapshots the backlog from the cursor and registers for live
// delivery under the same feed lock that serializes appends, so the
// replay-to-live handoff has no gap and no duplicate.
func (l *EventLog) Subscribe(ctx context.Context, feed string, from int64) (eventlog.Subscription, error) {
	f := l.feed(feed)
	f.mu.Lock()
	defer f.mu.Unlock()

	backlog, _, err := l.ListSince(ctx, feed, from, 0)
	if err != nil {
		return nil, err
	}

	sub := &pgSubscription{
		feed:  f,
		ch:    make(chan event.Event),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		queue: backlog,
	}
	f.subs[sub] = struct{}{}
	go sub.pump()
	return sub, nil
}

// Close marks the feed closed. Idempotent; history stays readable.
func (l *EventLog) Close(ctx context.Context, feed string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO event_feeds (feed, closed, closed_at) VALUES ($1, TRUE, now())
		 ON CONFLICT (feed) DO UPDATE SET closed = TRUE, closed_at = COALESCE(event_feeds.closed_at, now())`,
		feed)
	if err != nil {
		return fmt.Errorf("close feed %s: %w", feed, err)
	}
	return nil
}

type pgSubscription struct {
	feed *feedRuntime
	ch   chan event.Event
	wake chan struct{}
	done chan struct{}
	once sync.Once

	qmu   sync.Mutex
	queue []event.Event
}

func (s *pgSubscription) C() <-chan event.Event { return s.ch }

func (s *pgSubscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.done)
	})
}

// push queues an event for delivery. Called with the feed lock held, so it
// must never block.
func (s *pgSubscription) push(ev event.Event) {
	s.qmu.Lock()
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *pgSubscription) pump() {
	defer close(s.ch)
	for {
		s.qmu.Lock()
		var next *event.Event
		if len(s.queue) > 0 {
			next = &s.queue[0]
			s.queue = s.queue[1:]
		}
		s.qmu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.ch <- *next:
		case <-s.done:
			return
		}
	}
}
