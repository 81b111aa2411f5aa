package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/metrics"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("buffer closed")

// Buffer is the single-writer actor for one category. Operations are enqueued
// on an inbox channel and executed one at a time by the run goroutine, so no
// locking is needed around the scheduler state or the persisted collection.
//
// The flush scheduler is a two-state machine: idle (no wake timer armed) and
// armed. The first append while idle arms a one-shot timer for the flush
// interval; appends while armed are scheduling no-ops. When the timer fires
// the buffer returns to idle and the wake callback runs, whether or not any
// records are pending.
type Buffer[T any] struct {
	category telemetry.Category
	store    Store
	interval time.Duration
	wake     func()
	validate func(*T) error
	logger   *logging.Logger

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	// owned by the run goroutine
	armed bool
	timer *time.Timer
}

// New creates and starts a buffer actor for one category. validate may be nil
// for record kinds without structural invariants. wake is invoked (off the
// actor goroutine is fine, it must not block) every time the armed timer fires.
func New[T any](category telemetry.Category, store Store, interval time.Duration, wake func(), validate func(*T) error, logger *logging.Logger) *Buffer[T] {
	b := &Buffer[T]{
		category: category,
		store:    store,
		interval: interval,
		wake:     wake,
		validate: validate,
		logger:   logger,
		ops:      make(chan func(), 64),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Buffer[T]) run() {
	for {
		select {
		case fn := <-b.ops:
			fn()
		case <-b.done:
			if b.timer != nil {
				b.timer.Stop()
			}
			return
		}
	}
}

// submit enqueues an operation and waits for it to complete.
func (b *Buffer[T]) submit(ctx context.Context, fn func()) error {
	doneCh := make(chan struct{})
	wrapped := func() {
		fn()
		close(doneCh)
	}

	select {
	case b.ops <- wrapped:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-doneCh:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append validates, persists and schedules a flush for one record. It fails
// the caller only for malformed input or a storage error, never for anything
// happening downstream.
func (b *Buffer[T]) Append(ctx context.Context, rec T) error {
	var opErr error
	if err := b.submit(ctx, func() {
		opErr = b.doAppend(ctx, rec)
	}); err != nil {
		return err
	}
	return opErr
}

func (b *Buffer[T]) doAppend(ctx context.Context, rec T) error {
	if b.validate != nil {
		if err := b.validate(&rec); err != nil {
			metrics.AppendsTotal.WithLabelValues(string(b.category), "rejected").Inc()
			return err
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		metrics.AppendsTotal.WithLabelValues(string(b.category), "error").Inc()
		return fmt.Errorf("marshal %s record: %w", b.category, err)
	}

	if err := b.store.Append(ctx, b.category, payload); err != nil {
		metrics.AppendsTotal.WithLabelValues(string(b.category), "error").Inc()
		return err
	}

	b.arm()
	metrics.AppendsTotal.WithLabelValues(string(b.category), "ok").Inc()
	return nil
}

// arm runs on the actor goroutine. Arming is keyed on "is a timer already
// set", not on collection emptiness, so N rapid appends produce one timer.
func (b *Buffer[T]) arm() {
	if b.armed {
		return
	}
	b.armed = true
	b.timer = time.AfterFunc(b.interval, b.fire)
}

// fire runs on the timer goroutine; the state transition is handed back to
// the inbox so armed stays single-goroutine.
func (b *Buffer[T]) fire() {
	select {
	case b.ops <- func() {
		b.armed = false
		if b.wake != nil {
			b.wake()
		}
	}:
	case <-b.done:
	}
}

// Read returns the persisted collection in append order. Entries that fail to
// decode or re-validate are dropped with a warning rather than failing the
// read; this guards a flush against store corruption or schema drift.
func (b *Buffer[T]) Read(ctx context.Context) ([]T, error) {
	var (
		records []T
		opErr   error
	)
	if err := b.submit(ctx, func() {
		records, opErr = b.doRead(ctx)
	}); err != nil {
		return nil, err
	}
	return records, opErr
}

func (b *Buffer[T]) doRead(ctx context.Context) ([]T, error) {
	payloads, err := b.store.List(ctx, b.category)
	if err != nil {
		return nil, err
	}

	records := make([]T, 0, len(payloads))
	for _, payload := range payloads {
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			metrics.RecordsDropped.WithLabelValues(string(b.category)).Inc()
			b.logger.Warn("dropping undecodable record",
				logging.Category(string(b.category)), logging.Error(err))
			continue
		}
		if b.validate != nil {
			if err := b.validate(&rec); err != nil {
				metrics.RecordsDropped.WithLabelValues(string(b.category)).Inc()
				b.logger.Warn("dropping record failing re-validation",
					logging.Category(string(b.category)), logging.Error(err))
				continue
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear deletes the persisted collection. Idempotent.
func (b *Buffer[T]) Clear(ctx context.Context) error {
	var opErr error
	if err := b.submit(ctx, func() {
		opErr = b.store.Clear(ctx, b.category)
	}); err != nil {
		return err
	}
	return opErr
}

// SetWake replaces the wake callback. Routed through the inbox so the
// scheduler state stays single-goroutine; call before producers start.
func (b *Buffer[T]) SetWake(fn func()) error {
	return b.submit(context.Background(), func() {
		b.wake = fn
	})
}

// Armed reports the scheduler state. Used by tests.
func (b *Buffer[T]) Armed(ctx context.Context) (bool, error) {
	var armed bool
	if err := b.submit(ctx, func() {
		armed = b.armed
	}); err != nil {
		return false, err
	}
	return armed, nil
}

// Close stops the actor and its timer. Pending operations fail with ErrClosed.
func (b *Buffer[T]) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
