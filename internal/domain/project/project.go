// Package project defines the Project domain entity.
package project

import (
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Project is a workspace-rooted container for sessions, diffs, files,
// workflows and deployments.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	RootPath    string    `json:"root_path,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a project.
type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks the create request.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Invalidf("name is required")
	}
	if len(r.Name) > 128 {
		return domain.Invalidf("name too long (max 128 chars)")
	}
	return nil
}

// UpdateRequest holds the mutable project fields for PATCH.
type UpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Slugify converts a display name into a URL-safe slug.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
