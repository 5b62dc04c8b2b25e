// Package workflow defines the Workflow domain entity: a named, stored
// definition whose executions are runs with kind=workflow.
package workflow

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Workflow is a stored workflow definition.
type Workflow struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UpsertRequest holds the fields for creating or replacing a workflow.
type UpsertRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// Validate checks the upsert request.
func (r *UpsertRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Invalidf("name is required")
	}
	if len(r.Definition) == 0 {
		return domain.Invalidf("definition is required")
	}
	return nil
}
