// Package telemetry defines the record kinds accepted by the collector and
// the category buffers they are stored under.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// Category identifies one of the independent buffer collections.
type Category string

const (
	CategoryEvents     Category = "events"
	CategoryMetrics    Category = "metrics"
	CategoryLogs       Category = "logs"
	CategoryExceptions Category = "exceptions"
	CategoryTraces     Category = "traces"
)

// Categories lists every buffer category in flush-read order.
func Categories() []Category {
	return []Category{
		CategoryEvents,
		CategoryMetrics,
		CategoryLogs,
		CategoryExceptions,
		CategoryTraces,
	}
}

// CloudEventsSpecVersion is the only envelope version the collector accepts.
const CloudEventsSpecVersion = "1.0"

// ErrInvalidEvent is returned when an event envelope fails structural validation.
var ErrInvalidEvent = errors.New("invalid cloudevents envelope")

// Event is a CloudEvents 1.0 envelope plus an optional promotion allowlist.
// Attributes names the data keys that downstream sinks should lift to
// first-class properties; everything else stays nested under data.
type Event struct {
	SpecVersion     string         `json:"specversion"`
	ID              string         `json:"id"`
	Source          string         `json:"source"`
	Type            string         `json:"type"`
	Time            string         `json:"time,omitempty"`
	Subject         string         `json:"subject,omitempty"`
	DataContentType string         `json:"datacontenttype,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Attributes      []string       `json:"attributes,omitempty"`
}

// Validate checks the CloudEvents structural invariants. It is applied at
// append time and again on read as a guard against store corruption.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.SpecVersion != CloudEventsSpecVersion {
		return fmt.Errorf("%w: specversion %q", ErrInvalidEvent, e.SpecVersion)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidEvent)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if e.Time != "" {
		if _, err := time.Parse(time.RFC3339, e.Time); err != nil {
			return fmt.Errorf("%w: time %q: %v", ErrInvalidEvent, e.Time, err)
		}
	}
	return nil
}

// Timestamp returns the envelope time, or now when absent or unparseable.
func (e *Event) Timestamp() time.Time {
	if e.Time != "" {
		if t, err := time.Parse(time.RFC3339, e.Time); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// MetricSample is a single numeric measurement. Attributes are free-form and
// forwarded verbatim.
type MetricSample struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// LogBatch is an opaque, already-OTLP-encoded payload. The collector never
// parses the body; it is stored and relayed unchanged.
type LogBatch struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExceptionReport describes one caught error from a producer.
type ExceptionReport struct {
	Message    string         `json:"message"`
	Stack      string         `json:"stack,omitempty"`
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	DistinctID string         `json:"distinct_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// TraceLog is one console line captured during a worker invocation.
// Message keeps the original console arguments as-is.
type TraceLog struct {
	Level     string `json:"level"`
	Message   []any  `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TraceException is one uncaught error captured during a worker invocation.
type TraceException struct {
	Name      string `json:"name,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TraceRequest is the request metadata of a worker invocation, when present.
type TraceRequest struct {
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
	Colo   string `json:"colo,omitempty"`
}

// WorkerTraceEvent is a snapshot of one serverless worker invocation. A single
// trace fans out into zero or more downstream log records.
type WorkerTraceEvent struct {
	ScriptName     string           `json:"script_name,omitempty"`
	Outcome        string           `json:"outcome"`
	EventTimestamp int64            `json:"event_timestamp,omitempty"`
	Logs           []TraceLog       `json:"logs,omitempty"`
	Exceptions     []TraceException `json:"exceptions,omitempty"`
	Request        *TraceRequest    `json:"request,omitempty"`
}
