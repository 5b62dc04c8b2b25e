package http

import (
	"net/http"
	"strconv"

	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/domain/page"
	"github.com/Strob0t/DevPlane/internal/domain/run"
)

// CreateRun schedules a new run and returns it in queued status.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[run.CreateRequest](w, r)
	if !ok {
		return
	}
	created, err := h.Runtime.CreateRun(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListRuns returns a page of runs, optionally filtered by session_id,
// workflow_id, deployment_id, status or kind.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := func(ru *run.Run) bool {
		if v := q.Get("session_id"); v != "" && ru.SessionID != v {
			return false
		}
		if v := q.Get("workflow_id"); v != "" && ru.WorkflowID != v {
			return false
		}
		if v := q.Get("deployment_id"); v != "" && ru.DeploymentID != v {
			return false
		}
		if v := q.Get("status"); v != "" && string(ru.Status) != v {
			return false
		}
		if v := q.Get("kind"); v != "" && string(ru.Kind) != v {
			return false
		}
		return true
	}
	runs := h.Runtime.ListRuns(r.Context(), filter)
	cursor, limit := page.Params(q)
	writeJSON(w, http.StatusOK, page.Slice(runs, cursor, limit, page.MaxLimit))
}

// GetRun returns the run record.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ru, err := h.Runtime.GetRun(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ru)
}

// CancelRun requests cooperative cancellation. Always 202: the terminal
// outcome arrives later on the run's feed.
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Runtime.RequestCancel(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// CreateSessionRun schedules an agent run against the session in the URL.
func (h *Handlers) CreateSessionRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[run.CreateRequest](w, r)
	if !ok {
		return
	}
	req.Kind = run.KindAgent
	req.SessionID = urlParam(r, "id")
	if _, err := h.Sessions.Get(r.Context(), req.SessionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := h.Runtime.CreateRun(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"run_id": created.ID, "status": created.Status})
}

// eventPage is the pagination envelope for event history.
type eventPage struct {
	Items      []event.Event `json:"items"`
	NextCursor *string       `json:"next_cursor"`
}

// writeEventPage serves one window of a cursor-ordered event feed starting
// at from_cursor. fetch is handed one extra slot so the page can tell
// whether more events exist.
func writeEventPage(w http.ResponseWriter, r *http.Request, fetch func(from int64, limit int) ([]event.Event, error)) {
	q := r.URL.Query()
	from, _ := strconv.ParseInt(q.Get("from_cursor"), 10, 64)
	if from < 0 {
		from = 0
	}
	_, limit := page.Params(q)
	if limit > page.MaxLimit {
		limit = page.MaxLimit
	}

	events, err := fetch(from, limit+1)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	p := eventPage{Items: events}
	if len(events) > limit {
		p.Items = events[:limit]
		next := strconv.FormatInt(p.Items[len(p.Items)-1].Cursor+1, 10)
		p.NextCursor = &next
	}
	if p.Items == nil {
		p.Items = []event.Event{}
	}
	writeJSON(w, http.StatusOK, p)
}

// ListRunEvents returns a window of the run's event history starting at
// from_cursor.
func (h *Handlers) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	writeEventPage(w, r, func(from int64, limit int) ([]event.Event, error) {
		events, _, err := h.Runtime.Events(r.Context(), urlParam(r, "id"), from, limit)
		return events, err
	})
}

// StreamRun serves the run's event feed over SSE.
func (h *Handlers) StreamRun(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.Runtime.GetRun(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Stream.ServeFeed(w, r, id)
}
