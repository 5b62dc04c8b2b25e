// Package session defines the Session and Message domain entities.
package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Session is a conversation context within a project. Runs are created
// against a session and their events fan out on the session's feed.
type Session struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title,omitempty"`
	ModelID   string    `json:"model_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a session.
type CreateRequest struct {
	Title   string `json:"title,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

// UpdateRequest holds the mutable session fields for PATCH.
type UpdateRequest struct {
	Title   *string `json:"title,omitempty"`
	ModelID *string `json:"model_id,omitempty"`
}

// Message is one turn of a session conversation.
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"ts"`
}

// CreateMessageRequest holds the fields needed to append a message.
type CreateMessageRequest struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Validate checks the message request.
func (r *CreateMessageRequest) Validate() error {
	switch strings.TrimSpace(r.Role) {
	case "user", "assistant", "system":
	case "":
		return domain.Invalidf("role is required")
	default:
		return domain.Invalidf("unknown role %q", r.Role)
	}
	if len(r.Content) == 0 {
		return domain.Invalidf("content is required")
	}
	return nil
}
