// Package consumer is the broker-side ingestion adapter: producers that
// publish telemetry to the message bus instead of calling the HTTP API.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/messaging"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Consumer subscribes to the telemetry subjects and appends decoded records
// to the matching category buffers. Raw log batches are HTTP-only; the other
// four record kinds each get a subject.
type Consumer struct {
	subscriber messaging.Subscriber
	buffers    *buffer.Manager
	logger     *logging.Logger
	prefix     string
	queue      string
	subs       []messaging.Subscription
}

// New creates a consumer over an established broker connection.
func New(subscriber messaging.Subscriber, buffers *buffer.Manager, prefix, queue string, logger *logging.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		buffers:    buffers,
		logger:     logger,
		prefix:     prefix,
		queue:      queue,
	}
}

// Start subscribes to all telemetry subjects.
func (c *Consumer) Start() error {
	for subject, handler := range map[string]messaging.MessageHandler{
		c.prefix + ".events":     c.handleEvent,
		c.prefix + ".metrics":    c.handleMetric,
		c.prefix + ".exceptions": c.handleException,
		c.prefix + ".traces":     c.handleTrace,
	} {
		sub, err := c.subscriber.QueueSubscribe(subject, c.queue, handler)
		if err != nil {
			c.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
		c.logger.Info("subscribed", logging.Category(subject))
	}
	return nil
}

// Stop unsubscribes from all subjects.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed",
				logging.Category(sub.Subject()), logging.Error(err))
		}
	}
	c.subs = nil
}

func (c *Consumer) handleEvent(ctx context.Context, msg *messaging.Message) error {
	var event telemetry.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return c.drop(msg, err)
	}
	if err := c.buffers.Events.Append(ctx, event); err != nil {
		return c.drop(msg, err)
	}
	return nil
}

func (c *Consumer) handleMetric(ctx context.Context, msg *messaging.Message) error {
	var sample telemetry.MetricSample
	if err := json.Unmarshal(msg.Data, &sample); err != nil {
		return c.drop(msg, err)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}
	if err := c.buffers.Metrics.Append(ctx, sample); err != nil {
		return c.drop(msg, err)
	}
	return nil
}

func (c *Consumer) handleException(ctx context.Context, msg *messaging.Message) error {
	var report telemetry.ExceptionReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		return c.drop(msg, err)
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}
	if err := c.buffers.Exceptions.Append(ctx, report); err != nil {
		return c.drop(msg, err)
	}
	return nil
}

func (c *Consumer) handleTrace(ctx context.Context, msg *messaging.Message) error {
	var trace telemetry.WorkerTraceEvent
	if err := json.Unmarshal(msg.Data, &trace); err != nil {
		return c.drop(msg, err)
	}
	if err := c.buffers.Traces.Append(ctx, trace); err != nil {
		return c.drop(msg, err)
	}
	return nil
}

func (c *Consumer) drop(msg *messaging.Message, err error) error {
	c.logger.Warn("dropping broker message",
		logging.Category(msg.Subject), logging.Error(err))
	return err
}
