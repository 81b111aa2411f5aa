// Package nats provides a NATS implementation of the messaging interfaces.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rawkode-academy/telemetry-sink/internal/messaging"
)

// Client implements messaging.Subscriber using NATS.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*subscription
}

// Config holds NATS client configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for connection identification.
	Name string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// Timeout is the connection timeout.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "telemetry-collector",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewClient connects to NATS with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Client{conn: conn}, nil
}

// QueueSubscribe creates a queue subscription on the subject.
func (c *Client) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	natsSub, err := c.conn.QueueSubscribe(subject, queue, func(m *nats.Msg) {
		msg := &messaging.Message{
			Subject:   m.Subject,
			Data:      m.Data,
			Timestamp: time.Now().UTC(),
		}
		// Handler errors are the handler's to log; NATS core has no redelivery.
		_ = handler(context.Background(), msg)
	})
	if err != nil {
		return nil, fmt.Errorf("queue subscribe %s: %w", subject, err)
	}

	sub := &subscription{sub: natsSub}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

// Close drains the connection, allowing in-flight messages to complete.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.subs {
		_ = s.Unsubscribe()
	}
	c.subs = nil

	if err := c.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *subscription) Subject() string {
	return s.sub.Subject
}
