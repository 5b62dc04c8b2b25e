package http

import (
	"net/http"

	"github.com/Strob0t/DevPlane/internal/domain/page"
	"github.com/Strob0t/DevPlane/internal/domain/session"
)

// ListSessionMessages returns a page of the session transcript in append
// order.
func (h *Handlers) ListSessionMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Sessions.ListMessages(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	cursor, limit := page.Params(r.URL.Query())
	writeJSON(w, http.StatusOK, page.Slice(msgs, cursor, limit, page.MaxLimit))
}

// AppendSessionMessage adds one turn to the transcript.
func (h *Handlers) AppendSessionMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[session.CreateMessageRequest](w, r)
	if !ok {
		return
	}
	m, err := h.Sessions.AppendMessage(r.Context(), urlParam(r, "id"), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// StreamSession serves the session's scope feed over SSE. The feed
// aggregates events from every run in the session and is never closed, so
// clients can follow a conversation across runs.
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.Sessions.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Stream.ServeFeed(w, r, id)
}
