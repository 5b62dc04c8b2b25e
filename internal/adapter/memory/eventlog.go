// Package memory provides the in-process reference adapters: the
// append-only event log and the generic keyed resource store. Durability
// beyond process lifetime is explicitly out of scope for these.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
)

// EventLog implements eventlog.Log with per-feed locking. Cursor
// assignment is serialized per feed, and Subscribe snapshots the backlog
// under the same lock that guards appends, so the replay-to-live handoff
// can neither duplicate nor miss a cursor.
type EventLog struct {
	mu    sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	mu     sync.Mutex
	events []event.Event
	subs   map[*subscription]struct{}
	closed bool
}

// NewEventLog creates an empty in-memory event log.
func NewEventLog() *EventLog {
	return &EventLog{feeds: make(map[string]*feed)}
}

func (l *EventLog) feedFor(name string) *feed {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.feeds[name]
	if !ok {
		f = &feed{subs: make(map[*subscription]struct{})}
		l.feeds[name] = f
	}
	return f
}

// Append assigns the next cursor, stores the event and wakes subscribers.
func (l *EventLog) Append(_ context.Context, name string, typ string, data []byte) (int64, error) {
	f := l.feedFor(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, domain.ErrRunTerminated
	}

	ev := event.Event{
		Cursor: int64(len(f.events)),
		Type:   typ,
		TS:     time.Now().UTC(),
		Data:   data,
	}
	f.events = append(f.events, ev)

	for sub := range f.subs {
		sub.push(ev)
	}
	return ev.Cursor, nil
}

// ListSince returns events with cursor >= from, oldest first.
func (l *EventLog) ListSince(_ context.Context, name string, from int64, limit int) ([]event.Event, int64, error) {
	f := l.feedFor(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if from < 0 {
		from = 0
	}
	if from >= int64(len(f.events)) {
		return []event.Event{}, from, nil
	}

	end := from + int64(limit)
	if limit <= 0 || end > int64(len(f.events)) {
		end = int64(len(f.events))
	}

	out := make([]event.Event, end-from)
	copy(out, f.events[from:end])
	return out, end, nil
}

// Subscribe atomically copies the backlog from the given cursor and
// registers for live delivery.
func (l *EventLog) Subscribe(_ context.Context, name string, from int64) (eventlog.Subscription, error) {
	f := l.feedFor(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if from < 0 {
		from = 0
	}

	sub := &subscription{
		feed: f,
		ch:   make(chan event.Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if from < int64(len(f.events)) {
		sub.queue = append(sub.queue, f.events[from:]...)
	}
	f.subs[sub] = struct{}{}

	go sub.pump()
	return sub, nil
}

// Close marks the feed terminal. Attached subscribers stay attached; they
// simply see no further events.
func (l *EventLog) Close(_ context.Context, name string) error {
	f := l.feedFor(name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// subscription delivers events in order on ch. Appends land in queue under
// the feed lock; the pump goroutine drains the queue so a slow reader
// never blocks the append path.
type subscription struct {
	feed *feed
	ch   chan event.Event
	wake chan struct{}
	done chan struct{}
	once sync.Once

	qmu   sync.Mutex
	queue []event.Event
}

// push is called with the feed lock held.
func (s *subscription) push(ev event.Event) {
	s.qmu.Lock()
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.ch)
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.done:
			return
		}
	}
}

// C returns the delivery channel; it is closed after Cancel.
func (s *subscription) C() <-chan event.Event {
	return s.ch
}

// Cancel detaches from the feed and stops delivery. Idempotent.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.done)
	})
}
