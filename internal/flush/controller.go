// Package flush implements the wake-up handler that drains the category
// buffers into the configured sinks.
package flush

import (
	"context"
	"fmt"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/metrics"
	"github.com/rawkode-academy/telemetry-sink/internal/sink"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Controller runs flush cycles. Buffer schedulers call Wake when their timer
// fires; a single worker goroutine serializes cycles, so simultaneous wakes
// from several categories coalesce into one flush.
type Controller struct {
	buffers     *buffer.Manager
	sinks       []sink.Sink
	sinkTimeout time.Duration
	logger      *logging.Logger
	wake        chan struct{}
}

// NewController wires the buffer manager to the configured sink set.
func NewController(buffers *buffer.Manager, sinks []sink.Sink, sinkTimeout time.Duration, logger *logging.Logger) *Controller {
	return &Controller{
		buffers:     buffers,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
		logger:      logger,
		wake:        make(chan struct{}, 1),
	}
}

// Wake requests a flush cycle. Non-blocking; a wake arriving while one is
// already pending is absorbed.
func (c *Controller) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run processes wake requests until ctx is cancelled. A final cycle drains
// whatever is still buffered before returning.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-c.wake:
			c.Flush(ctx)
		case <-ctx.Done():
			c.Flush(context.Background())
			return
		}
	}
}

// Flush executes one cycle: read all five categories, dispatch the snapshot to
// every sink inside its own failure boundary, then clear every category that
// was read. Clearing is unconditional; a record appended between the snapshot
// read and the clear is lost, which bounds data loss to the tail of one flush
// window and is accepted for sampled telemetry.
func (c *Controller) Flush(ctx context.Context) {
	start := time.Now()
	metrics.FlushCyclesTotal.Inc()

	snapshot, err := c.buffers.Snapshot(ctx)
	if err != nil {
		// Nothing was read, so nothing may be cleared.
		c.logger.Error("flush: reading buffers failed", logging.Error(err))
		return
	}

	if snapshot.Empty() {
		c.logger.Debug("flush: no pending records")
		return
	}

	c.logger.Info("flush: dispatching snapshot",
		logging.Count(snapshotSize(snapshot)),
		logging.Sink(fmt.Sprintf("%d configured", len(c.sinks))),
	)

	for _, s := range c.sinks {
		c.dispatch(ctx, s, snapshot)
	}

	if err := c.buffers.Clear(ctx); err != nil {
		c.logger.Error("flush: clearing buffers failed", logging.Error(err))
	}

	metrics.FlushDuration.Observe(time.Since(start).Seconds())
}

// dispatch is the per-sink failure boundary. A failing or panicking sink loses
// its data for this flush; it cannot abort sibling sinks or the clear step,
// and nothing propagates back to producers.
func (c *Controller) dispatch(ctx context.Context, s sink.Sink, snapshot *telemetry.Batch) {
	dispatchCtx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panicked: %v", r)
			}
		}()
		return s.Dispatch(dispatchCtx, snapshot)
	}()
	metrics.SinkDispatchDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SinkDispatchTotal.WithLabelValues(s.Name(), "error").Inc()
		c.logger.Error("flush: sink dispatch failed, data for this cycle is lost",
			logging.Sink(s.Name()), logging.Error(err))
		return
	}
	metrics.SinkDispatchTotal.WithLabelValues(s.Name(), "ok").Inc()
}

func snapshotSize(b *telemetry.Batch) int {
	return len(b.Events) + len(b.Metrics) + len(b.Logs) + len(b.Exceptions) + len(b.Traces)
}
