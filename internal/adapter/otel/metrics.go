package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "devplane"

// Metrics holds all DevPlane metric instruments.
type Metrics struct {
	RunsStarted    metric.Int64Counter
	RunsFinished   metric.Int64Counter
	EventsAppended metric.Int64Counter
	RunDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("devplane.runs.started",
		metric.WithDescription("Number of runs created"))
	if err != nil {
		return nil, err
	}

	m.RunsFinished, err = meter.Int64Counter("devplane.runs.finished",
		metric.WithDescription("Number of runs reaching a terminal state"))
	if err != nil {
		return nil, err
	}

	m.EventsAppended, err = meter.Int64Counter("devplane.events.appended",
		metric.WithDescription("Number of events appended to run logs"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("devplane.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
