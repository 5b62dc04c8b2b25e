package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	devotel "github.com/Strob0t/DevPlane/internal/adapter/otel"
	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/event"
	"github.com/Strob0t/DevPlane/internal/domain/run"
	"github.com/Strob0t/DevPlane/internal/port/broadcast"
	"github.com/Strob0t/DevPlane/internal/port/eventlog"
	"github.com/Strob0t/DevPlane/internal/port/executor"
	"github.com/Strob0t/DevPlane/internal/port/messagequeue"
)

// RuntimeService is the run registry: it owns run identity, status
// transitions, progress and cancellation signaling. All status mutation
// goes through its mutex (single-writer discipline per run); executors
// run on supervised goroutines and report back through the Reporter.
type RuntimeService struct {
	log     eventlog.Log
	exec    executor.Executor
	hub     broadcast.Broadcaster
	queue   messagequeue.Publisher
	metrics *devotel.Metrics
	sem     *semaphore.Weighted

	mu       sync.Mutex
	runs     map[string]*runState
	order    []string
	draining bool
	wg       sync.WaitGroup
}

type runState struct {
	run    run.Run
	req    run.CreateRequest
	ctx    context.Context
	cancel context.CancelFunc
}

// RuntimeOption configures optional collaborators.
type RuntimeOption func(*RuntimeService)

// WithBroadcaster wires the fire-and-forget status push channel.
func WithBroadcaster(hub broadcast.Broadcaster) RuntimeOption {
	return func(s *RuntimeService) { s.hub = hub }
}

// WithPublisher wires the message broker for runs.* lifecycle subjects.
func WithPublisher(q messagequeue.Publisher) RuntimeOption {
	return func(s *RuntimeService) { s.queue = q }
}

// WithMetrics wires the run metric instruments.
func WithMetrics(m *devotel.Metrics) RuntimeOption {
	return func(s *RuntimeService) { s.metrics = m }
}

// NewRuntimeService creates the registry. maxConcurrent bounds how many
// executors run at once; queued runs wait for a slot.
func NewRuntimeService(log eventlog.Log, exec executor.Executor, maxConcurrent int64, opts ...RuntimeOption) *RuntimeService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	s := &RuntimeService{
		log:  log,
		exec: exec,
		sem:  semaphore.NewWeighted(maxConcurrent),
		runs: make(map[string]*runState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRun allocates a run in queued status and schedules its executor on
// a background goroutine. It never blocks on the work itself.
func (s *RuntimeService) CreateRun(ctx context.Context, req *run.CreateRequest) (*run.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return nil, domain.Conflictf("service is draining, not accepting new runs")
	}

	r := run.Run{
		ID:           "run_" + uuid.NewString(),
		Kind:         req.Kind,
		SessionID:    req.SessionID,
		WorkflowID:   req.WorkflowID,
		DeploymentID: req.DeploymentID,
		Status:       run.StatusQueued,
		CreatedAt:    time.Now().UTC(),
	}
	// The executor context is detached from the request: the run outlives
	// the request that created it.
	runCtx, cancel := context.WithCancel(context.Background())
	st := &runState{run: r, req: *req, ctx: runCtx, cancel: cancel}
	s.runs[r.ID] = st
	s.order = append(s.order, r.ID)
	s.wg.Add(1)
	s.mu.Unlock()

	s.appendStatus(ctx, &r, "")
	s.notify(ctx, &r, messagequeue.SubjectRunStarted)
	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
	}
	slog.InfoContext(ctx, "run created", "run_id", r.ID, "kind", r.Kind)

	go s.execute(r.ID)

	out := r
	return &out, nil
}

// GetRun returns a copy of the run.
func (s *RuntimeService) GetRun(_ context.Context, id string) (*run.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return nil, domain.NotFoundf("run %s not found", id)
	}
	out := st.run
	return &out, nil
}

// ListRuns returns copies of all runs matching the filter, in creation order.
func (s *RuntimeService) ListRuns(_ context.Context, filter func(*run.Run) bool) []run.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]run.Run, 0, len(s.order))
	for _, id := range s.order {
		r := s.runs[id].run
		if filter == nil || filter(&r) {
			out = append(out, r)
		}
	}
	return out
}

// RequestCancel asks the run to stop. Cooperative and advisory: the
// registry flips the status to cancelling and cancels the executor
// context; the executor decides the actual terminal outcome. Idempotent:
// cancelling an already cancelling or terminal run is a no-op success.
func (s *RuntimeService) RequestCancel(ctx context.Context, id string) error {
	s.mu.Lock()
	st, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return domain.NotFoundf("run %s not found", id)
	}
	if st.run.Status.Terminal() || st.run.Status == run.StatusCancelling {
		s.mu.Unlock()
		return nil
	}
	st.run.Status = run.StatusCancelling
	r := st.run
	st.cancel()
	// Appended before the mutex is released: finish cannot write the
	// terminal status event until it takes the lock, so on the never-closed
	// scope feed cancelling always precedes the terminal event.
	s.append(ctx, &r, event.TypeStatus, statusData(&r, "cancel requested"))
	s.mu.Unlock()

	s.broadcastStatus(ctx, &r)
	slog.InfoContext(ctx, "run cancel requested", "run_id", id)
	return nil
}

// ReportProgress updates progress. Late callbacks racing with natural
// completion are logged and dropped rather than corrupting a terminal
// record.
func (s *RuntimeService) ReportProgress(ctx context.Context, id string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return domain.NotFoundf("run %s not found", id)
	}
	if st.run.Status.Terminal() {
		slog.DebugContext(ctx, "progress after terminal status dropped", "run_id", id)
		return nil
	}
	st.run.Progress = progress
	return nil
}

// AddUsage accumulates execution stats onto a live run.
func (s *RuntimeService) AddUsage(ctx context.Context, id string, usage run.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return domain.NotFoundf("run %s not found", id)
	}
	if st.run.Status.Terminal() {
		slog.DebugContext(ctx, "usage after terminal status dropped", "run_id", id)
		return nil
	}
	st.run.Usage.InputTokens += usage.InputTokens
	st.run.Usage.OutputTokens += usage.OutputTokens
	st.run.Usage.CostUSD += usage.CostUSD
	return nil
}

// Events returns a page of the run's event history.
func (s *RuntimeService) Events(ctx context.Context, id string, from int64, limit int) ([]event.Event, int64, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.log.ListSince(ctx, id, from, limit)
}

// Drain stops accepting new runs and waits for in-flight runs to finish.
// When ctx expires before they do, cancellation is requested on every live
// run and the wait continues until ctx is done for good.
func (s *RuntimeService) Drain(ctx context.Context) {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	s.mu.Lock()
	for id, st := range s.runs {
		if !st.run.Status.Terminal() {
			slog.Warn("drain deadline reached, cancelling run", "run_id", id)
			if st.run.Status != run.StatusCancelling {
				st.run.Status = run.StatusCancelling
			}
			st.cancel()
		}
	}
	s.mu.Unlock()

	<-done
}

func statusData(r *run.Run, reason string) []byte {
	return event.MarshalData(event.StatusData{
		Status:   string(r.Status),
		Progress: r.Progress,
		Reason:   reason,
	})
}

// appendStatus writes a status event to the run feed and its scope feed
// and pushes it to connected clients.
func (s *RuntimeService) appendStatus(ctx context.Context, r *run.Run, reason string) {
	s.append(ctx, r, event.TypeStatus, statusData(r, reason))
	s.broadcastStatus(ctx, r)
}

func (s *RuntimeService) broadcastStatus(ctx context.Context, r *run.Run) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, "run.status", map[string]any{
		"run_id":   r.ID,
		"scope_id": r.ScopeID(),
		"status":   string(r.Status),
		"progress": r.Progress,
	})
}

// append writes an event to the run feed and mirrors it onto the scope
// feed. The scope feed is never closed, so sibling runs keep flowing.
func (s *RuntimeService) append(ctx context.Context, r *run.Run, typ string, data []byte) {
	if _, err := s.log.Append(ctx, r.ID, typ, data); err != nil {
		slog.WarnContext(ctx, "append to run feed failed", "run_id", r.ID, "type", typ, "error", err)
		return
	}
	if scope := r.ScopeID(); scope != "" && scope != r.ID {
		if _, err := s.log.Append(ctx, scope, typ, data); err != nil {
			slog.WarnContext(ctx, "append to scope feed failed", "scope", scope, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.EventsAppended.Add(ctx, 1)
	}
}

func (s *RuntimeService) notify(ctx context.Context, r *run.Run, subject string) {
	if s.queue == nil {
		return
	}
	payload := event.MarshalData(messagequeue.RunLifecyclePayload{
		RunID:     r.ID,
		Kind:      string(r.Kind),
		SessionID: r.SessionID,
		Status:    string(r.Status),
	})
	if err := s.queue.Publish(ctx, subject, payload); err != nil {
		slog.WarnContext(ctx, "run lifecycle publish failed", "subject", subject, "error", err)
	}
}
