// Package deploy defines the Deployment domain entity. Executing a
// deployment is a run with kind=deployment; the record here is the target
// description plus a pointer to its latest run.
package deploy

import (
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Deployment describes a deploy target within a project.
type Deployment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Environment string    `json:"environment"`
	Ref         string    `json:"ref,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a deployment.
type CreateRequest struct {
	Environment string `json:"environment"`
	Ref         string `json:"ref,omitempty"`
}

// Validate checks the create request.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Environment) == "" {
		return domain.Invalidf("environment is required")
	}
	return nil
}
