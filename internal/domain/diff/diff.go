// Package diff defines the Diff domain entity: a proposed change set
// recorded against a project, applied or discarded as a unit.
package diff

import (
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Status of a diff record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApplied   Status = "applied"
	StatusDiscarded Status = "discarded"
)

// Diff is a proposed unified-diff change set for one or more files.
type Diff struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	RunID     string    `json:"run_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Patch     string    `json:"patch"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to record a diff.
type CreateRequest struct {
	Title string `json:"title,omitempty"`
	Patch string `json:"patch"`
	RunID string `json:"run_id,omitempty"`
}

// Validate checks the create request.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Patch) == "" {
		return domain.Invalidf("patch is required")
	}
	return nil
}
