package run

import "github.com/Strob0t/DevPlane/internal/domain"

// AgentSpec describes the agent behind a kind=agent run.
type AgentSpec struct {
	Instructions string `json:"instructions,omitempty"`
	Model        string `json:"model,omitempty"`
}

// InputSpec points a run at its input message or inline prompt.
type InputSpec struct {
	MessageID string `json:"message_id,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

// CreateRequest holds the fields needed to create a run. The payload
// shape depends on the kind; Validate enforces the structural
// requirements per kind.
type CreateRequest struct {
	Kind         Kind       `json:"kind"`
	SessionID    string     `json:"session_id,omitempty"`
	WorkflowID   string     `json:"workflow_id,omitempty"`
	DeploymentID string     `json:"deployment_id,omitempty"`
	Agent        *AgentSpec `json:"agent,omitempty"`
	Input        *InputSpec `json:"input,omitempty"`
}

// Validate checks the request is structurally valid for its kind.
func (r *CreateRequest) Validate() error {
	switch r.Kind {
	case KindAgent:
		if r.SessionID == "" {
			return domain.Invalidf("session_id is required for agent runs")
		}
		if r.Agent == nil {
			return domain.Invalidf("agent is required")
		}
		if r.Input == nil {
			return domain.Invalidf("input is required")
		}
		if r.Input.MessageID == "" && r.Input.Prompt == "" {
			return domain.Invalidf("input requires message_id or prompt")
		}
	case KindWorkflow:
		if r.WorkflowID == "" {
			return domain.Invalidf("workflow_id is required for workflow runs")
		}
	case KindDeployment:
		if r.DeploymentID == "" {
			return domain.Invalidf("deployment_id is required for deployment runs")
		}
	case "":
		return domain.Invalidf("kind is required")
	default:
		return domain.Invalidf("unknown run kind %q", r.Kind)
	}
	return nil
}
