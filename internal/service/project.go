package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain/project"
)

// ProjectService owns project records and their workspace directories.
// Each project gets a directory under the configured workspace root; the
// files service resolves paths against it via Root.
type ProjectService struct {
	workspaceRoot string
	projects      *memory.Collection[project.Project]
}

func NewProjectService(workspaceRoot string) *ProjectService {
	return &ProjectService{
		workspaceRoot: workspaceRoot,
		projects:      memory.NewCollection[project.Project](),
	}
}

// Create registers a project and provisions its workspace directory.
func (s *ProjectService) Create(ctx context.Context, req *project.CreateRequest) (*project.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := "proj_" + uuid.NewString()
	slug := project.Slugify(req.Name)
	if slug == "" {
		slug = id
	}
	now := time.Now().UTC()
	p := project.Project{
		ID:          id,
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Tags:        req.Tags,
		RootPath:    filepath.Join(s.workspaceRoot, id),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := os.MkdirAll(p.RootPath, 0o755); err != nil {
		return nil, err
	}
	if err := s.projects.Insert(id, &p); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "project created", "project_id", id, "slug", slug)
	return &p, nil
}

func (s *ProjectService) Get(_ context.Context, id string) (*project.Project, error) {
	return s.projects.Get(id)
}

func (s *ProjectService) List(_ context.Context) []project.Project {
	return s.projects.List(nil)
}

// Update applies a partial update and bumps updated_at.
func (s *ProjectService) Update(_ context.Context, id string, req *project.UpdateRequest) (*project.Project, error) {
	err := s.projects.Update(id, func(p *project.Project) error {
		if req.Name != nil {
			if err := (&project.CreateRequest{Name: *req.Name}).Validate(); err != nil {
				return err
			}
			p.Name = *req.Name
			p.Slug = project.Slugify(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Tags != nil {
			p.Tags = req.Tags
		}
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.projects.Get(id)
}

// Delete removes the record and its workspace directory.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	p, err := s.projects.Get(id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(id); err != nil {
		return err
	}
	if err := os.RemoveAll(p.RootPath); err != nil {
		slog.WarnContext(ctx, "workspace cleanup failed", "project_id", id, "error", err)
	}
	return nil
}

// Root implements RootResolver for the files service.
func (s *ProjectService) Root(_ context.Context, id string) (string, error) {
	p, err := s.projects.Get(id)
	if err != nil {
		return "", err
	}
	return p.RootPath, nil
}
