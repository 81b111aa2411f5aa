package mapper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// OTLP /v1/logs JSON shapes. Both OTLP-speaking backends accept the same
// payload; only authentication differs.

type OTLPPayload struct {
	ResourceLogs []ResourceLog `json:"resourceLogs"`
}

type ResourceLog struct {
	Resource  Resource   `json:"resource"`
	ScopeLogs []ScopeLog `json:"scopeLogs"`
}

type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

type ScopeLog struct {
	Scope      Scope       `json:"scope"`
	LogRecords []LogRecord `json:"logRecords"`
}

type Scope struct {
	Name string `json:"name"`
}

type LogRecord struct {
	TimeUnixNano   string     `json:"timeUnixNano"`
	SeverityNumber int        `json:"severityNumber"`
	SeverityText   string     `json:"severityText"`
	Body           BodyValue  `json:"body"`
	Attributes     []KeyValue `json:"attributes,omitempty"`
}

type BodyValue struct {
	StringValue string `json:"stringValue"`
}

type KeyValue struct {
	Key   string      `json:"key"`
	Value StringValue `json:"value"`
}

type StringValue struct {
	StringValue string `json:"stringValue"`
}

const (
	unknownScript = "unknown"
	scopeName     = "telemetry-sink"
)

// FromTraces builds one OTLP log payload from buffered worker traces, grouped
// by script name. Within a worker, console logs come first and exceptions
// after, preserving capture order.
func FromTraces(traces []telemetry.WorkerTraceEvent) OTLPPayload {
	grouped := make(map[string][]telemetry.WorkerTraceEvent)
	for _, tr := range traces {
		name := tr.ScriptName
		if name == "" {
			name = unknownScript
		}
		grouped[name] = append(grouped[name], tr)
	}

	// Deterministic output order for tests and diffable payloads.
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	payload := OTLPPayload{ResourceLogs: make([]ResourceLog, 0, len(names))}
	for _, name := range names {
		records := make([]LogRecord, 0)
		for _, tr := range grouped[name] {
			records = append(records, traceRecords(tr)...)
		}
		payload.ResourceLogs = append(payload.ResourceLogs, ResourceLog{
			Resource: Resource{Attributes: []KeyValue{
				stringAttr("service.name", name),
			}},
			ScopeLogs: []ScopeLog{{
				Scope:      Scope{Name: scopeName},
				LogRecords: records,
			}},
		})
	}
	return payload
}

func traceRecords(tr telemetry.WorkerTraceEvent) []LogRecord {
	records := make([]LogRecord, 0, len(tr.Logs)+len(tr.Exceptions))

	attrs := []KeyValue{stringAttr("outcome", tr.Outcome)}
	if tr.Request != nil {
		if tr.Request.URL != "" {
			attrs = append(attrs, stringAttr("http.url", tr.Request.URL))
		}
		if tr.Request.Method != "" {
			attrs = append(attrs, stringAttr("http.method", tr.Request.Method))
		}
		if tr.Request.Colo != "" {
			attrs = append(attrs, stringAttr("colo", tr.Request.Colo))
		}
	}

	for _, line := range tr.Logs {
		num, text := Severity(line.Level)
		records = append(records, LogRecord{
			TimeUnixNano:   unixNano(line.Timestamp, tr.EventTimestamp),
			SeverityNumber: num,
			SeverityText:   text,
			Body:           BodyValue{StringValue: renderMessage(line.Message)},
			Attributes:     attrs,
		})
	}
	for _, ex := range tr.Exceptions {
		num, text := ExceptionSeverity()
		body := ex.Message
		if ex.Name != "" {
			body = ex.Name + ": " + ex.Message
		}
		records = append(records, LogRecord{
			TimeUnixNano:   unixNano(ex.Timestamp, tr.EventTimestamp),
			SeverityNumber: num,
			SeverityText:   text,
			Body:           BodyValue{StringValue: body},
			Attributes:     attrs,
		})
	}
	return records
}

// FromCapture converts capture messages into OTLP log records for the backend
// that only speaks OTLP. Properties flatten to string attributes; exceptions
// keep their ERROR severity.
func FromCapture(messages []CaptureMessage) OTLPPayload {
	records := make([]LogRecord, 0, len(messages))
	for _, msg := range messages {
		num, text := SeverityInfo, "INFO"
		if msg.Event == "$exception" {
			num, text = ExceptionSeverity()
		}

		keys := make([]string, 0, len(msg.Properties))
		for k := range msg.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		attrs := make([]KeyValue, 0, len(keys)+1)
		attrs = append(attrs, stringAttr("distinct_id", msg.DistinctID))
		for _, k := range keys {
			attrs = append(attrs, stringAttr(k, fmt.Sprintf("%v", msg.Properties[k])))
		}

		records = append(records, LogRecord{
			TimeUnixNano:   strconv.FormatInt(msg.Timestamp.UnixNano(), 10),
			SeverityNumber: num,
			SeverityText:   text,
			Body:           BodyValue{StringValue: msg.Event},
			Attributes:     attrs,
		})
	}

	return OTLPPayload{ResourceLogs: []ResourceLog{{
		Resource: Resource{Attributes: []KeyValue{
			stringAttr("service.name", scopeName),
		}},
		ScopeLogs: []ScopeLog{{
			Scope:      Scope{Name: scopeName},
			LogRecords: records,
		}},
	}}}
}

// unixNano renders a millisecond timestamp as the decimal nanosecond string
// OTLP expects, falling back to the invocation timestamp and then to now.
func unixNano(millis, fallbackMillis int64) string {
	if millis == 0 {
		millis = fallbackMillis
	}
	if millis == 0 {
		return strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	}
	return strconv.FormatInt(millis*int64(time.Millisecond), 10)
}

// renderMessage joins console arguments the way a terminal would print them.
func renderMessage(parts []any) string {
	rendered := make([]string, 0, len(parts))
	for _, p := range parts {
		rendered = append(rendered, fmt.Sprintf("%v", p))
	}
	return strings.Join(rendered, " ")
}

func stringAttr(key, value string) KeyValue {
	return KeyValue{Key: key, Value: StringValue{StringValue: value}}
}
