// Package messagequeue defines the port for publishing run lifecycle
// notifications to an external message broker.
package messagequeue

import "context"

// Subjects for run lifecycle notifications.
const (
	SubjectRunStarted  = "runs.started"
	SubjectRunFinished = "runs.finished"
)

// Publisher publishes a message to a subject. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// RunLifecyclePayload is the wire payload for runs.* subjects.
type RunLifecyclePayload struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
}
