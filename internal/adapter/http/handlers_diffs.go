package http

import (
	"net/http"

	"github.com/Strob0t/DevPlane/internal/domain/diff"
	"github.com/Strob0t/DevPlane/internal/domain/page"
)

// ListDiffs returns a page of diffs, optionally filtered by project_id and
// status.
func (h *Handlers) ListDiffs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	diffs := h.Diffs.List(r.Context(), q.Get("project_id"), diff.Status(q.Get("status")))
	cursor, limit := page.Params(q)
	writeJSON(w, http.StatusOK, page.Slice(diffs, cursor, limit, page.MaxLimit))
}

// ApplyDiff resolves a pending diff as applied.
func (h *Handlers) ApplyDiff(w http.ResponseWriter, r *http.Request) {
	d, err := h.Diffs.Apply(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DiscardDiff resolves a pending diff as discarded.
func (h *Handlers) DiscardDiff(w http.ResponseWriter, r *http.Request) {
	d, err := h.Diffs.Discard(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
