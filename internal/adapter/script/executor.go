// Package script provides a scripted executor: a deterministic stand-in
// for the real agent/workflow execution planes. It walks a fixed set of
// checkpoints, reporting progress and events, and honors cooperative
// cancellation between checkpoints.
package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/port/executor"
)

// MessageStore resolves run input messages and records assistant output.
// The session service implements it.
type MessageStore interface {
	MessageText(ctx context.Context, sessionID, messageID string) (string, error)
	AppendAssistant(ctx context.Context, sessionID, text string) (string, error)
}

// UsageFunc accumulates usage stats onto a live run.
type UsageFunc func(ctx context.Context, runID string, usage run.Usage)

// Executor implements executor.Executor with scripted checkpoints.
type Executor struct {
	messages  MessageStore
	usage     UsageFunc
	stepDelay time.Duration
	steps     int
}

// New creates a scripted executor. stepDelay spaces the checkpoints so
// streams have something to tail; tests pass zero.
func New(messages MessageStore, usage UsageFunc, stepDelay time.Duration) *Executor {
	return &Executor{
		messages:  messages,
		usage:     usage,
		stepDelay: stepDelay,
		steps:     4,
	}
}

// Execute performs one scripted run. Returns ctx.Err() when cancelled at a
// checkpoint; the registry maps that to the cancelled terminal status.
func (e *Executor) Execute(ctx context.Context, r *run.Run, req *run.CreateRequest, rep executor.Reporter) (*run.Result, error) {
	prompt, err := e.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}

	for step := 1; step <= e.steps; step++ {
		if err := e.checkpoint(ctx); err != nil {
			return nil, err
		}
		progress := float64(step) / float64(e.steps+1)
		if err := rep.ReportProgress(ctx, progress); err != nil {
			return nil, err
		}
		data := event.MarshalData(map[string]any{
			"step":  step,
			"total": e.steps,
		})
		if err := rep.AppendEvent(ctx, event.TypeProgress, data); err != nil {
			return nil, err
		}
	}

	if err := e.checkpoint(ctx); err != nil {
		return nil, err
	}

	summary := e.summarize(r.Kind, prompt)
	result := &run.Result{Summary: summary}

	if r.Kind == run.KindAgent && e.messages != nil {
		msgID, err := e.messages.AppendAssistant(ctx, req.SessionID, summary)
		if err != nil {
			return nil, fmt.Errorf("record assistant message: %w", err)
		}
		result.MessageID = msgID

		tokenData := event.MarshalData(map[string]any{
			"message_id": msgID,
			"text":       summary,
		})
		if err := rep.AppendEvent(ctx, event.TypeToken, tokenData); err != nil {
			return nil, err
		}
	}

	if e.usage != nil {
		e.usage(ctx, r.ID, run.Usage{
			InputTokens:  int64(max(1, len(strings.Fields(prompt)))),
			OutputTokens: int64(max(1, len(strings.Fields(summary)))),
		})
	}

	return result, nil
}

func (e *Executor) resolveInput(ctx context.Context, req *run.CreateRequest) (string, error) {
	if req.Input == nil {
		return string(req.Kind), nil
	}
	if req.Input.MessageID != "" && e.messages != nil {
		return e.messages.MessageText(ctx, req.SessionID, req.Input.MessageID)
	}
	return req.Input.Prompt, nil
}

func (e *Executor) checkpoint(ctx context.Context) error {
	if e.stepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.stepDelay):
		return nil
	}
}

func (e *Executor) summarize(kind run.Kind, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) > 120 {
		prompt = prompt[:120]
	}
	switch kind {
	case run.KindWorkflow:
		return "workflow completed"
	case run.KindDeployment:
		return "deployment completed"
	default:
		return "done: " + prompt
	}
}
