// Package executor defines the port for the pluggable unit of work behind
// a run. The registry owns lifecycle and supervision; the executor only
// performs the work and reports progress and events through the Reporter.
package executor

import (
	"context"

	"github.com/Strob0t/DevPlane/internal/domain/run"
)

// Reporter is handed to an executor so it can feed progress and events
// back into the engine. Both calls become no-ops (logged, not fatal) once
// the run is terminal, so a late callback racing with completion cannot
// corrupt a terminal record.
type Reporter interface {
	AppendEvent(ctx context.Context, typ string, data []byte) error
	ReportProgress(ctx context.Context, progress float64) error
}

// Executor performs one unit of work. ctx is cancelled when cancellation
// is requested; the executor decides the actual outcome. Returning a
// result means succeeded, returning an error means failed, and returning
// ctx.Err() after a cancel request means cancelled.
type Executor interface {
	Execute(ctx context.Context, r *run.Run, req *run.CreateRequest, rep Reporter) (*run.Result, error)
}
