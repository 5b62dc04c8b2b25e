package http

import (
	"net/http"

	"github.com/Strob0t/DevPlane/internal/domain/event"
)

// ExecuteWorkflow schedules a run for the workflow and returns it.
func (h *Handlers) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	ru, err := h.Workflows.Execute(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ru)
}

// StreamWorkflow serves the workflow's scope feed over SSE. The feed
// aggregates events from every run of the workflow and is never closed.
func (h *Handlers) StreamWorkflow(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.Workflows.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Stream.ServeFeed(w, r, id)
}

// ExecuteDeployment schedules a run for the deployment target and returns
// it.
func (h *Handlers) ExecuteDeployment(w http.ResponseWriter, r *http.Request) {
	ru, err := h.Deployments.Execute(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ru)
}

// StreamDeployment serves the deployment's scope feed over SSE.
func (h *Handlers) StreamDeployment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.Deployments.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Stream.ServeFeed(w, r, id)
}

// DeploymentLogs returns a window of the deployment's scope feed, which
// collects events from every run executed against the target.
func (h *Handlers) DeploymentLogs(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.Deployments.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeEventPage(w, r, func(from int64, limit int) ([]event.Event, error) {
		events, _, err := h.Log.ListSince(r.Context(), id, from, limit)
		return events, err
	})
}

// CancelDeployment requests cancellation of the deployment's current run.
func (h *Handlers) CancelDeployment(w http.ResponseWriter, r *http.Request) {
	if err := h.Deployments.Cancel(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
