package mapper

import (
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// EventTypePrefix namespaces capture event names. Prefixing is idempotent so
// producers that already send fully-qualified types pass through unchanged.
const EventTypePrefix = "rawkode.academy."

// AnonymousDistinctID is used when no identity field is present in the data.
const AnonymousDistinctID = "anonymous"

// CaptureMessage is one event-capture call against the general-capture backend.
type CaptureMessage struct {
	DistinctID string         `json:"distinct_id"`
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

// PrefixEventType qualifies an event type with the capture namespace unless it
// already carries it.
func PrefixEventType(eventType string) string {
	if len(eventType) >= len(EventTypePrefix) && eventType[:len(EventTypePrefix)] == EventTypePrefix {
		return eventType
	}
	return EventTypePrefix + eventType
}

// ResolveDistinctID picks the downstream identity for an event. Priority order
// is fixed: userId, user_id, sessionId, distinct_id, then anonymous.
func ResolveDistinctID(data map[string]any) string {
	for _, key := range []string{"userId", "user_id", "sessionId", "distinct_id"} {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return AnonymousDistinctID
}

// FromEvent maps a CloudEvents envelope onto a capture message. Keys named in
// the envelope's promotion allowlist are lifted to top-level properties; the
// full data map stays nested so nothing is lost.
func FromEvent(e telemetry.Event) CaptureMessage {
	props := map[string]any{
		"source": e.Source,
	}
	if e.Subject != "" {
		props["subject"] = e.Subject
	}
	for _, key := range e.Attributes {
		if v, ok := e.Data[key]; ok {
			props[key] = v
		}
	}
	if len(e.Data) > 0 {
		data := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			data[k] = v
		}
		props["data"] = data
	}

	return CaptureMessage{
		DistinctID: ResolveDistinctID(e.Data),
		Event:      PrefixEventType(e.Type),
		Properties: props,
		Timestamp:  e.Timestamp(),
	}
}

// FromMetric maps a metric sample onto a "$metric" capture event. Sample
// attributes are forwarded verbatim alongside the name/value pair.
func FromMetric(m telemetry.MetricSample) CaptureMessage {
	props := map[string]any{
		"metric_name":  m.Name,
		"metric_value": m.Value,
	}
	for k, v := range m.Attributes {
		props[k] = v
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return CaptureMessage{
		DistinctID: AnonymousDistinctID,
		Event:      "$metric",
		Properties: props,
		Timestamp:  ts,
	}
}

// FromException maps an exception report onto a "$exception" capture event.
func FromException(r telemetry.ExceptionReport) CaptureMessage {
	props := map[string]any{
		"message": r.Message,
	}
	if r.Stack != "" {
		props["stack"] = r.Stack
	}
	if r.Name != "" {
		props["name"] = r.Name
	}
	for k, v := range r.Properties {
		props[k] = v
	}

	distinctID := r.DistinctID
	if distinctID == "" {
		distinctID = AnonymousDistinctID
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return CaptureMessage{
		DistinctID: distinctID,
		Event:      "$exception",
		Properties: props,
		Timestamp:  ts,
	}
}

// CaptureBatch maps the capture-bound subset of a flush snapshot: events,
// then metrics, then exceptions.
func CaptureBatch(b *telemetry.Batch) []CaptureMessage {
	out := make([]CaptureMessage, 0, len(b.Events)+len(b.Metrics)+len(b.Exceptions))
	for _, e := range b.Events {
		out = append(out, FromEvent(e))
	}
	for _, m := range b.Metrics {
		out = append(out, FromMetric(m))
	}
	for _, r := range b.Exceptions {
		out = append(out, FromException(r))
	}
	return out
}
