// Package messaging abstracts the message broker used as an alternative
// ingestion source, so the consumer is not coupled to a specific broker.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// MessageHandler processes a received message. Returning an error indicates
// processing failure; the message is not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// QueueSubscribe creates a queue subscription. Messages are load-balanced
	// across subscribers in the same queue group, so each record is buffered
	// exactly once per collector fleet.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)

	// Close releases resources and unsubscribes all active subscriptions.
	Close() error
}
