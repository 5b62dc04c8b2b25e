package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/deploy"
	"github.com/Strob0t/DevPlane/internal/domain/run"
)

// DeployService owns deployment target records. Executing one schedules a
// run with kind=deployment on the runtime; the record keeps a pointer to
// the latest run so clients can tail its feed.
type DeployService struct {
	projects    *ProjectService
	runtime     *RuntimeService
	deployments *memory.Collection[deploy.Deployment]
}

func NewDeployService(projects *ProjectService, runtime *RuntimeService) *DeployService {
	return &DeployService{
		projects:    projects,
		runtime:     runtime,
		deployments: memory.NewCollection[deploy.Deployment](),
	}
}

func (s *DeployService) Create(ctx context.Context, projectID string, req *deploy.CreateRequest) (*deploy.Deployment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := deploy.Deployment{
		ID:          "dep_" + uuid.NewString(),
		ProjectID:   projectID,
		Environment: req.Environment,
		Ref:         req.Ref,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deployments.Insert(d.ID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeployService) Get(_ context.Context, id string) (*deploy.Deployment, error) {
	return s.deployments.Get(id)
}

func (s *DeployService) List(_ context.Context, projectID string) []deploy.Deployment {
	return s.deployments.List(func(d *deploy.Deployment) bool {
		return projectID == "" || d.ProjectID == projectID
	})
}

func (s *DeployService) Delete(_ context.Context, id string) error {
	return s.deployments.Delete(id)
}

// Execute schedules a deployment run and records it on the target.
func (s *DeployService) Execute(ctx context.Context, id string) (*run.Run, error) {
	if _, err := s.deployments.Get(id); err != nil {
		return nil, err
	}
	r, err := s.runtime.CreateRun(ctx, &run.CreateRequest{
		Kind:         run.KindDeployment,
		DeploymentID: id,
	})
	if err != nil {
		return nil, err
	}
	_ = s.deployments.Update(id, func(d *deploy.Deployment) error {
		d.RunID = r.ID
		d.UpdatedAt = time.Now().UTC()
		return nil
	})
	return r, nil
}

// Cancel requests cancellation of the deployment's current run.
func (s *DeployService) Cancel(ctx context.Context, id string) error {
	d, err := s.deployments.Get(id)
	if err != nil {
		return err
	}
	if d.RunID == "" {
		return domain.Conflictf("deployment %s has no run to cancel", id)
	}
	return s.runtime.RequestCancel(ctx, d.RunID)
}
