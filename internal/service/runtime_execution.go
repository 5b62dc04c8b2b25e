package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/port/messagequeue"
)

// execute supervises one run's executor from queued to terminal. Exactly
// one terminal write happens per run, guaranteed by the deferred recovery
// block even when the executor panics.
func (s *RuntimeService) execute(id string) {
	defer s.wg.Done()

	s.mu.Lock()
	st, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	runCtx := st.ctx
	req := st.req
	s.mu.Unlock()

	// Wait for an executor slot; a cancel request while queued lands here.
	if err := s.sem.Acquire(runCtx, 1); err != nil {
		s.finish(id, run.StatusCancelled, nil, "cancelled before start")
		return
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	switch st.run.Status {
	case run.StatusQueued:
		now := time.Now().UTC()
		st.run.Status = run.StatusRunning
		st.run.StartedAt = &now
	case run.StatusCancelling:
		s.mu.Unlock()
		s.finish(id, run.StatusCancelled, nil, "cancelled before start")
		return
	default:
		s.mu.Unlock()
		return
	}
	r := st.run
	s.mu.Unlock()

	s.appendStatus(runCtx, &r, "")
	slog.Info("run started", "run_id", id, "kind", r.Kind)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("executor panic", "run_id", id, "panic", rec)
			s.finish(id, run.StatusFailed, nil, fmt.Sprintf("executor panic: %v", rec))
		}
	}()

	result, err := s.exec.Execute(runCtx, &r, &req, &reporter{svc: s, runID: id})
	switch {
	case err == nil:
		s.finish(id, run.StatusSucceeded, result, "")
	case errors.Is(err, context.Canceled) && s.cancelRequested(id):
		s.finish(id, run.StatusCancelled, nil, "cancelled")
	default:
		s.finish(id, run.StatusFailed, nil, err.Error())
	}
}

func (s *RuntimeService) cancelRequested(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	return ok && (st.run.Status == run.StatusCancelling || st.run.Status == run.StatusCancelled)
}

// finish writes the terminal record. A second call for the same run is a
// no-op: the first terminal write wins.
func (s *RuntimeService) finish(id string, status run.Status, result *run.Result, reason string) {
	ctx := context.Background()

	s.mu.Lock()
	st, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if st.run.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	if !run.CanTransition(st.run.Status, status) {
		slog.Warn("illegal terminal transition forced to failed",
			"run_id", id, "from", st.run.Status, "to", status)
		status = run.StatusFailed
	}
	now := time.Now().UTC()
	st.run.Status = status
	st.run.EndedAt = &now
	st.run.Progress = 1
	if status == run.StatusSucceeded {
		st.run.Result = result
	} else {
		st.run.FailureReason = reason
	}
	r := st.run
	st.cancel()
	s.mu.Unlock()

	if status == run.StatusFailed && reason != "" {
		s.append(ctx, &r, event.TypeError, event.MarshalData(event.ErrorData{
			Code:    string(domain.CodeInternal),
			Message: reason,
		}))
	}
	s.appendStatus(ctx, &r, reason)
	if err := s.log.Close(ctx, r.ID); err != nil {
		slog.Warn("close run feed failed", "run_id", r.ID, "error", err)
	}
	s.notify(ctx, &r, messagequeue.SubjectRunFinished)
	if s.metrics != nil {
		s.metrics.RunsFinished.Add(ctx, 1)
		if r.StartedAt != nil {
			s.metrics.RunDuration.Record(ctx, now.Sub(*r.StartedAt).Seconds())
		}
	}
	slog.Info("run finished", "run_id", id, "status", status)
}

// reporter feeds executor callbacks back into the registry and the log.
type reporter struct {
	svc   *RuntimeService
	runID string
}

// AppendEvent appends an executor event to the run's feeds. Returns
// RunTerminated once the run is terminal.
func (p *reporter) AppendEvent(ctx context.Context, typ string, data []byte) error {
	p.svc.mu.Lock()
	st, ok := p.svc.runs[p.runID]
	if !ok {
		p.svc.mu.Unlock()
		return domain.NotFoundf("run %s not found", p.runID)
	}
	if st.run.Status.Terminal() {
		p.svc.mu.Unlock()
		return domain.ErrRunTerminated
	}
	r := st.run
	p.svc.mu.Unlock()

	p.svc.append(ctx, &r, typ, data)
	return nil
}

// ReportProgress delegates to the registry's terminal-safe update.
func (p *reporter) ReportProgress(ctx context.Context, progress float64) error {
	return p.svc.ReportProgress(ctx, p.runID, progress)
}
