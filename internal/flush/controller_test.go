package flush

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/sink"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

func newTestManager(t *testing.T, interval time.Duration) *buffer.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mgr := buffer.NewManager(buffer.NewRedisStoreFromClient(client), interval, nil, logging.Default())
	t.Cleanup(mgr.Close)
	return mgr
}

// fakeSink records dispatched snapshots and optionally fails or panics.
type fakeSink struct {
	name    string
	err     error
	panics  bool
	mu      sync.Mutex
	batches []*telemetry.Batch
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Dispatch(_ context.Context, batch *telemetry.Batch) error {
	if f.panics {
		panic("sink blew up")
	}
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSink) dispatched() []*telemetry.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func TestFlushDispatchesAndClears(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, time.Hour)

	fs := &fakeSink{name: "fake"}
	c := NewController(mgr, []sink.Sink{fs}, 5*time.Second, logging.Default())

	require.NoError(t, mgr.Metrics.Append(ctx, telemetry.MetricSample{Name: "m", Value: 1}))
	require.NoError(t, mgr.Traces.Append(ctx, telemetry.WorkerTraceEvent{Outcome: "ok"}))

	c.Flush(ctx)

	batches := fs.dispatched()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Metrics, 1)
	assert.Len(t, batches[0].Traces, 1)

	// the flushed categories are empty afterwards
	snapshot, err := mgr.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.Empty())
}

func TestFlushEmptySkipsSinks(t *testing.T) {
	mgr := newTestManager(t, time.Hour)

	fs := &fakeSink{name: "fake"}
	c := NewController(mgr, []sink.Sink{fs}, 5*time.Second, logging.Default())

	c.Flush(context.Background())
	assert.Empty(t, fs.dispatched())
}

func TestFlushFailingSinkDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, time.Hour)

	failing := &fakeSink{name: "failing", err: errors.New("backend down")}
	healthy := &fakeSink{name: "healthy"}
	c := NewController(mgr, []sink.Sink{failing, healthy}, 5*time.Second, logging.Default())

	require.NoError(t, mgr.Exceptions.Append(ctx, telemetry.ExceptionReport{Message: "boom"}))

	c.Flush(ctx)

	// the healthy sink still got the snapshot
	require.Len(t, healthy.dispatched(), 1)

	// and the buffers were cleared despite the failure
	snapshot, err := mgr.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.Empty())
}

func TestFlushPanickingSinkIsContained(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, time.Hour)

	panicking := &fakeSink{name: "panicking", panics: true}
	healthy := &fakeSink{name: "healthy"}
	c := NewController(mgr, []sink.Sink{panicking, healthy}, 5*time.Second, logging.Default())

	require.NoError(t, mgr.Metrics.Append(ctx, telemetry.MetricSample{Name: "m", Value: 1}))

	require.NotPanics(t, func() { c.Flush(ctx) })
	require.Len(t, healthy.dispatched(), 1)
}

func TestWakeCoalesces(t *testing.T) {
	mgr := newTestManager(t, time.Hour)
	c := NewController(mgr, nil, 5*time.Second, logging.Default())

	// a second wake while one is pending must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			c.Wake()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wake blocked")
	}
}

func TestRunFlushesOnWakeAndDrainsOnShutdown(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, time.Hour)

	fs := &fakeSink{name: "fake"}
	c := NewController(mgr, []sink.Sink{fs}, 5*time.Second, logging.Default())

	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		c.Run(runCtx)
		close(runDone)
	}()

	require.NoError(t, mgr.Metrics.Append(ctx, telemetry.MetricSample{Name: "m", Value: 1}))
	c.Wake()

	require.Eventually(t, func() bool {
		return len(fs.dispatched()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// records buffered after the last wake are drained by the shutdown flush
	require.NoError(t, mgr.Metrics.Append(ctx, telemetry.MetricSample{Name: "m2", Value: 2}))
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Len(t, fs.dispatched(), 2)
}

func TestFlushEndToEndCapture(t *testing.T) {
	ctx := context.Background()

	var (
		mu       sync.Mutex
		payloads []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mgr := newTestManager(t, time.Hour)
	capture := sink.NewCapture(srv.URL, "key", 5*time.Second)
	c := NewController(mgr, []sink.Sink{capture}, 5*time.Second, logging.Default())

	require.NoError(t, mgr.Metrics.Append(ctx, telemetry.MetricSample{
		Name:       "latency_ms",
		Value:      42,
		Attributes: map[string]string{"region": "eu"},
		Timestamp:  time.Now(),
	}))

	c.Flush(ctx)

	require.Len(t, payloads, 1)
	assert.Equal(t, "$metric", payloads[0]["event"])
	props, ok := payloads[0]["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "latency_ms", props["metric_name"])
	assert.Equal(t, float64(42), props["metric_value"])
	assert.Equal(t, "eu", props["region"])
}
