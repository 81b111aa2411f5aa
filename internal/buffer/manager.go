package buffer

import (
	"context"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Manager owns the five category buffers. The categories are independent
// actors with no shared state; only the flush controller ever reads them
// together.
type Manager struct {
	Events     *Buffer[telemetry.Event]
	Metrics    *Buffer[telemetry.MetricSample]
	Logs       *Buffer[telemetry.LogBatch]
	Exceptions *Buffer[telemetry.ExceptionReport]
	Traces     *Buffer[telemetry.WorkerTraceEvent]
}

// NewManager starts one buffer actor per category against a shared store.
// wake is the flush controller's wake callback, shared by every scheduler.
func NewManager(store Store, interval time.Duration, wake func(), logger *logging.Logger) *Manager {
	validateEvent := func(e *telemetry.Event) error { return e.Validate() }

	return &Manager{
		Events:     New(telemetry.CategoryEvents, store, interval, wake, validateEvent, logger),
		Metrics:    New[telemetry.MetricSample](telemetry.CategoryMetrics, store, interval, wake, nil, logger),
		Logs:       New[telemetry.LogBatch](telemetry.CategoryLogs, store, interval, wake, nil, logger),
		Exceptions: New[telemetry.ExceptionReport](telemetry.CategoryExceptions, store, interval, wake, nil, logger),
		Traces:     New[telemetry.WorkerTraceEvent](telemetry.CategoryTraces, store, interval, wake, nil, logger),
	}
}

// SetWake replaces the wake callback on every buffer. Used when the flush
// controller is constructed after the buffers it drains.
func (m *Manager) SetWake(fn func()) error {
	for _, set := range []func(func()) error{
		m.Events.SetWake,
		m.Metrics.SetWake,
		m.Logs.SetWake,
		m.Exceptions.SetWake,
		m.Traces.SetWake,
	} {
		if err := set(fn); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot reads all five categories sequentially into one flush snapshot.
func (m *Manager) Snapshot(ctx context.Context) (*telemetry.Batch, error) {
	events, err := m.Events.Read(ctx)
	if err != nil {
		return nil, err
	}
	metricSamples, err := m.Metrics.Read(ctx)
	if err != nil {
		return nil, err
	}
	logBatches, err := m.Logs.Read(ctx)
	if err != nil {
		return nil, err
	}
	exceptions, err := m.Exceptions.Read(ctx)
	if err != nil {
		return nil, err
	}
	traces, err := m.Traces.Read(ctx)
	if err != nil {
		return nil, err
	}

	return &telemetry.Batch{
		Events:     events,
		Metrics:    metricSamples,
		Logs:       logBatches,
		Exceptions: exceptions,
		Traces:     traces,
	}, nil
}

// Clear deletes every category collection. Records appended between the
// snapshot read and this clear are lost; that window is the accepted data-loss
// bound for sampled telemetry.
func (m *Manager) Clear(ctx context.Context) error {
	for _, clear := range []func(context.Context) error{
		m.Events.Clear,
		m.Metrics.Clear,
		m.Logs.Clear,
		m.Exceptions.Clear,
		m.Traces.Clear,
	} {
		if err := clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops all five actors.
func (m *Manager) Close() {
	m.Events.Close()
	m.Metrics.Close()
	m.Logs.Close()
	m.Exceptions.Close()
	m.Traces.Close()
}
