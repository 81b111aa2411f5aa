package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/messaging"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// fakeSubscriber records subscriptions and lets tests inject messages.
type fakeSubscriber struct {
	handlers map[string]messaging.MessageHandler
	queues   map[string]string
	err      error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		handlers: make(map[string]messaging.MessageHandler),
		queues:   make(map[string]string),
	}
}

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.handlers[subject] = handler
	f.queues[subject] = queue
	return &fakeSubscription{subject: subject, subscriber: f}, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func (f *fakeSubscriber) publish(t *testing.T, subject string, payload any) error {
	t.Helper()
	handler, ok := f.handlers[subject]
	require.True(t, ok, "no handler for %s", subject)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return handler(context.Background(), &messaging.Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
	})
}

type fakeSubscription struct {
	subject    string
	subscriber *fakeSubscriber
}

func (s *fakeSubscription) Unsubscribe() error {
	delete(s.subscriber.handlers, s.subject)
	return nil
}

func (s *fakeSubscription) Subject() string { return s.subject }

func newTestBuffers(t *testing.T) *buffer.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mgr := buffer.NewManager(buffer.NewRedisStoreFromClient(client), time.Hour, nil, logging.Default())
	t.Cleanup(mgr.Close)
	return mgr
}

func TestConsumerSubscribesAllSubjects(t *testing.T) {
	sub := newFakeSubscriber()
	c := New(sub, newTestBuffers(t), "telemetry", "collector", logging.Default())

	require.NoError(t, c.Start())
	defer c.Stop()

	for _, subject := range []string{
		"telemetry.events",
		"telemetry.metrics",
		"telemetry.exceptions",
		"telemetry.traces",
	} {
		assert.Contains(t, sub.handlers, subject)
		assert.Equal(t, "collector", sub.queues[subject])
	}
}

func TestConsumerBuffersRecords(t *testing.T) {
	ctx := context.Background()
	sub := newFakeSubscriber()
	buffers := newTestBuffers(t)
	c := New(sub, buffers, "telemetry", "collector", logging.Default())

	require.NoError(t, c.Start())
	defer c.Stop()

	require.NoError(t, sub.publish(t, "telemetry.events", telemetry.Event{
		SpecVersion: "1.0", ID: "e1", Source: "/bus", Type: "video.play",
	}))
	require.NoError(t, sub.publish(t, "telemetry.metrics", telemetry.MetricSample{Name: "m", Value: 1}))
	require.NoError(t, sub.publish(t, "telemetry.exceptions", telemetry.ExceptionReport{Message: "boom"}))
	require.NoError(t, sub.publish(t, "telemetry.traces", telemetry.WorkerTraceEvent{Outcome: "ok"}))

	events, err := buffers.Events.Read(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)

	samples, err := buffers.Metrics.Read(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.False(t, samples[0].Timestamp.IsZero())

	reports, err := buffers.Exceptions.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	traces, err := buffers.Traces.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, traces, 1)
}

func TestConsumerDropsInvalidPayloads(t *testing.T) {
	ctx := context.Background()
	sub := newFakeSubscriber()
	buffers := newTestBuffers(t)
	c := New(sub, buffers, "telemetry", "collector", logging.Default())

	require.NoError(t, c.Start())
	defer c.Stop()

	handler := sub.handlers["telemetry.events"]
	err := handler(ctx, &messaging.Message{Subject: "telemetry.events", Data: []byte("{broken")})
	assert.Error(t, err)

	// an envelope failing validation is dropped, not buffered
	require.Error(t, sub.publish(t, "telemetry.events", telemetry.Event{SpecVersion: "0.3", ID: "e1", Source: "/s", Type: "x"}))

	events, readErr := buffers.Events.Read(ctx)
	require.NoError(t, readErr)
	assert.Empty(t, events)
}

func TestConsumerStartFailureUnwinds(t *testing.T) {
	sub := newFakeSubscriber()
	sub.err = errors.New("broker down")
	c := New(sub, newTestBuffers(t), "telemetry", "collector", logging.Default())

	require.Error(t, c.Start())
	assert.Empty(t, sub.handlers)
}

func TestConsumerStop(t *testing.T) {
	sub := newFakeSubscriber()
	c := New(sub, newTestBuffers(t), "telemetry", "collector", logging.Default())

	require.NoError(t, c.Start())
	require.Len(t, sub.handlers, 4)

	c.Stop()
	assert.Empty(t, sub.handlers)
}
