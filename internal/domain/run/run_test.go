package run

import (
	"errors"
	"testing"

	"github.com/Strob0t/DevPlane/internal/domain"
)

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusSucceeded, StatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []Status{StatusQueued, StatusRunning, StatusCancelling}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusCancelled, true},
		{StatusQueued, StatusCancelling, true},
		{StatusQueued, StatusSucceeded, false},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelling, true},
		{StatusCancelling, StatusCancelled, true},
		{StatusCancelling, StatusSucceeded, true},
		{StatusCancelling, StatusFailed, true},
		{StatusSucceeded, StatusRunning, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusFailed, StatusQueued, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{
			name: "valid agent run",
			req: CreateRequest{
				Kind:      KindAgent,
				SessionID: "ses_1",
				Agent:     &AgentSpec{Instructions: "fix the bug"},
				Input:     &InputSpec{MessageID: "msg_1"},
			},
		},
		{
			name: "agent run with inline prompt",
			req: CreateRequest{
				Kind:      KindAgent,
				SessionID: "ses_1",
				Agent:     &AgentSpec{},
				Input:     &InputSpec{Prompt: "hello"},
			},
		},
		{name: "missing kind", req: CreateRequest{}, wantErr: true},
		{name: "unknown kind", req: CreateRequest{Kind: "batch"}, wantErr: true},
		{
			name:    "agent run without agent",
			req:     CreateRequest{Kind: KindAgent, SessionID: "ses_1", Input: &InputSpec{MessageID: "m"}},
			wantErr: true,
		},
		{
			name:    "agent run without input target",
			req:     CreateRequest{Kind: KindAgent, SessionID: "ses_1", Agent: &AgentSpec{}, Input: &InputSpec{}},
			wantErr: true,
		},
		{name: "workflow run without workflow", req: CreateRequest{Kind: KindWorkflow}, wantErr: true},
		{name: "valid workflow run", req: CreateRequest{Kind: KindWorkflow, WorkflowID: "wf_1"}},
		{name: "deployment run without deployment", req: CreateRequest{Kind: KindDeployment}, wantErr: true},
		{name: "valid deployment run", req: CreateRequest{Kind: KindDeployment, DeploymentID: "dep_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("validation error should match domain.ErrValidation, got %v", err)
			}
		})
	}
}

func TestScopeID(t *testing.T) {
	r := &Run{SessionID: "s", WorkflowID: "w", DeploymentID: "d"}
	if r.ScopeID() != "s" {
		t.Errorf("session takes precedence, got %s", r.ScopeID())
	}
	r.SessionID = ""
	if r.ScopeID() != "w" {
		t.Errorf("workflow next, got %s", r.ScopeID())
	}
	r.WorkflowID = ""
	if r.ScopeID() != "d" {
		t.Errorf("deployment last, got %s", r.ScopeID())
	}
}
