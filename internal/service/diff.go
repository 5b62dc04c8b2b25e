package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/diff"
)

// DiffService records proposed change sets and tracks their resolution.
// A diff moves from pending to applied or discarded exactly once.
type DiffService struct {
	projects *ProjectService
	diffs    *memory.Collection[diff.Diff]
}

func NewDiffService(projects *ProjectService) *DiffService {
	return &DiffService{
		projects: projects,
		diffs:    memory.NewCollection[diff.Diff](),
	}
}

func (s *DiffService) Create(ctx context.Context, projectID string, req *diff.CreateRequest) (*diff.Diff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := diff.Diff{
		ID:        "diff_" + uuid.NewString(),
		ProjectID: projectID,
		RunID:     req.RunID,
		Title:     req.Title,
		Patch:     req.Patch,
		Status:    diff.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.diffs.Insert(d.ID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DiffService) Get(_ context.Context, id string) (*diff.Diff, error) {
	return s.diffs.Get(id)
}

func (s *DiffService) List(_ context.Context, projectID string, status diff.Status) []diff.Diff {
	return s.diffs.List(func(d *diff.Diff) bool {
		if projectID != "" && d.ProjectID != projectID {
			return false
		}
		return status == "" || d.Status == status
	})
}

// Apply marks a pending diff as applied.
func (s *DiffService) Apply(_ context.Context, id string) (*diff.Diff, error) {
	return s.resolve(id, diff.StatusApplied)
}

// Discard marks a pending diff as discarded.
func (s *DiffService) Discard(_ context.Context, id string) (*diff.Diff, error) {
	return s.resolve(id, diff.StatusDiscarded)
}

func (s *DiffService) resolve(id string, to diff.Status) (*diff.Diff, error) {
	err := s.diffs.Update(id, func(d *diff.Diff) error {
		if d.Status != diff.StatusPending {
			return domain.Conflictf("diff %s already %s", id, d.Status)
		}
		d.Status = to
		d.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.diffs.Get(id)
}
