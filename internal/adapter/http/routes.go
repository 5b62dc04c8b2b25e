package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/DevPlane/internal/domain/deploy"
	"github.com/Strob0t/DevPlane/internal/domain/project"
	"github.com/Strob0t/DevPlane/internal/domain/session"
	"github.com/Strob0t/DevPlane/internal/domain/workflow"
)

// MountRoutes attaches the full API surface to the router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/readyz", h.Readyz)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"name": "devplane", "version": Version})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", handleCreate(h.Projects.Create))
			r.Get("/", handlePagedList(h.listProjects))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handleGet(h.Projects.Get))
				r.Patch("/", handleUpdate(h.Projects.Update))
				r.Delete("/", handleDelete(h.Projects.Delete))

				r.Post("/sessions", handleCreateUnder(h.Sessions.Create))
				r.Get("/sessions", handlePagedList(h.listProjectSessions))

				r.Post("/diffs", handleCreateUnder(h.Diffs.Create))
				r.Get("/diffs", h.ListDiffs)

				r.Post("/deployments", handleCreateUnder(h.Deployments.Create))
				r.Get("/deployments", handlePagedList(h.listProjectDeployments))

				r.Post("/workflows", handleCreateUnder(h.Workflows.Create))
				r.Get("/workflows", handlePagedList(h.listProjectWorkflows))

				r.Route("/files", func(r chi.Router) {
					r.Get("/tree", h.FileTree)
					r.Get("/content", h.ReadFile)
					r.Put("/content", h.WriteFile)
					r.Delete("/content", h.DeleteFile)
					r.Post("/batch", h.BatchFiles)
				})
				r.Post("/search", h.SearchFiles)
			})
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", handleGet(h.Sessions.Get))
			r.Patch("/", handleUpdate(h.Sessions.Update))
			r.Delete("/", handleDelete(h.Sessions.Delete))
			r.Get("/messages", h.ListSessionMessages)
			r.Post("/messages", h.AppendSessionMessage)
			r.Post("/runs", h.CreateSessionRun)
			r.Get("/stream", h.StreamSession)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.CreateRun)
			r.Get("/", h.ListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRun)
				r.Post("/cancel", h.CancelRun)
				r.Get("/events", h.ListRunEvents)
				r.Get("/stream", h.StreamRun)
			})
		})

		r.Route("/diffs/{id}", func(r chi.Router) {
			r.Get("/", handleGet(h.Diffs.Get))
			r.Post("/apply", h.ApplyDiff)
			r.Post("/discard", h.DiscardDiff)
		})

		r.Route("/deployments/{id}", func(r chi.Router) {
			r.Get("/", handleGet(h.Deployments.Get))
			r.Delete("/", handleDelete(h.Deployments.Delete))
			r.Post("/execute", h.ExecuteDeployment)
			r.Post("/cancel", h.CancelDeployment)
			r.Get("/logs", h.DeploymentLogs)
			r.Get("/stream", h.StreamDeployment)
		})

		r.Route("/workflows/{id}", func(r chi.Router) {
			r.Get("/", handleGet(h.Workflows.Get))
			r.Put("/", handleUpdate(h.Workflows.Replace))
			r.Delete("/", handleDelete(h.Workflows.Delete))
			r.Post("/execute", h.ExecuteWorkflow)
			r.Post("/runs", h.ExecuteWorkflow)
			r.Get("/stream", h.StreamWorkflow)
		})
	})
}

func (h *Handlers) listProjects(r *http.Request) ([]project.Project, error) {
	return h.Projects.List(r.Context()), nil
}

func (h *Handlers) listProjectSessions(r *http.Request) ([]session.Session, error) {
	if _, err := h.Projects.Get(r.Context(), urlParam(r, "id")); err != nil {
		return nil, err
	}
	return h.Sessions.List(r.Context(), urlParam(r, "id")), nil
}

func (h *Handlers) listProjectDeployments(r *http.Request) ([]deploy.Deployment, error) {
	if _, err := h.Projects.Get(r.Context(), urlParam(r, "id")); err != nil {
		return nil, err
	}
	return h.Deployments.List(r.Context(), urlParam(r, "id")), nil
}

func (h *Handlers) listProjectWorkflows(r *http.Request) ([]workflow.Workflow, error) {
	if _, err := h.Projects.Get(r.Context(), urlParam(r, "id")); err != nil {
		return nil, err
	}
	return h.Workflows.List(r.Context(), urlParam(r, "id")), nil
}
