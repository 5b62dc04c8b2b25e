package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/domain/workflow"
)

// WorkflowService owns stored workflow definitions. Executing one
// schedules a run with kind=workflow on the runtime.
type WorkflowService struct {
	projects  *ProjectService
	runtime   *RuntimeService
	workflows *memory.Collection[workflow.Workflow]
}

func NewWorkflowService(projects *ProjectService, runtime *RuntimeService) *WorkflowService {
	return &WorkflowService{
		projects:  projects,
		runtime:   runtime,
		workflows: memory.NewCollection[workflow.Workflow](),
	}
}

func (s *WorkflowService) Create(ctx context.Context, projectID string, req *workflow.UpsertRequest) (*workflow.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	w := workflow.Workflow{
		ID:         "wf_" + uuid.NewString(),
		ProjectID:  projectID,
		Name:       req.Name,
		Definition: req.Definition,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.workflows.Insert(w.ID, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *WorkflowService) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	return s.workflows.Get(id)
}

func (s *WorkflowService) List(_ context.Context, projectID string) []workflow.Workflow {
	return s.workflows.List(func(w *workflow.Workflow) bool {
		return projectID == "" || w.ProjectID == projectID
	})
}

// Replace swaps a workflow's definition in place.
func (s *WorkflowService) Replace(_ context.Context, id string, req *workflow.UpsertRequest) (*workflow.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	err := s.workflows.Update(id, func(w *workflow.Workflow) error {
		w.Name = req.Name
		w.Definition = req.Definition
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.workflows.Get(id)
}

func (s *WorkflowService) Delete(_ context.Context, id string) error {
	return s.workflows.Delete(id)
}

// Execute schedules a workflow run.
func (s *WorkflowService) Execute(ctx context.Context, id string) (*run.Run, error) {
	if _, err := s.workflows.Get(id); err != nil {
		return nil, err
	}
	return s.runtime.CreateRun(ctx, &run.CreateRequest{
		Kind:       run.KindWorkflow,
		WorkflowID: id,
	})
}
