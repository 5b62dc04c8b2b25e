package http

import (
	"net/http"
	"time"

	"github.com/Strob0t/DevPlane/internal/adapter/sse"
	"github.com/Strob0t/DevPlane/internal/adapter/ws"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
	"github.com/Strob0t/DevPlane/internal/service"
)

// Version is the API version reported by the root endpoint.
const Version = "0.1.0"

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Projects    *service.ProjectService
	Sessions    *service.SessionService
	Runtime     *service.RuntimeService
	Files       *service.FilesService
	Diffs       *service.DiffService
	Deployments *service.DeployService
	Workflows   *service.WorkflowService
	Stream      *sse.Handler
	Hub         *ws.Hub
	Log         eventlog.Log

	// Ready reports backend readiness (database reachability and the
	// like). Nil means always ready.
	Ready func() error

	started time.Time
}

// NewHandlers stamps the start time used by the health endpoint.
func NewHandlers() *Handlers {
	return &Handlers{started: time.Now().UTC()}
}

// Health reports liveness plus coarse process stats.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"ws_connections": h.wsConnections(),
	})
}

// Readyz reports whether backing stores are reachable.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handlers) wsConnections() int {
	if h.Hub == nil {
		return 0
	}
	return h.Hub.ConnectionCount()
}
