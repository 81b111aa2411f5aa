package logging

import "log/slog"

// Common field names for consistent logging across the collector.
const (
	FieldService  = "service"
	FieldCategory = "category"
	FieldSink     = "sink"
	FieldStatus   = "status"
	FieldCount    = "count"
	FieldError    = "error"
	FieldDuration = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Category returns a slog attribute for a buffer category.
func Category(name string) slog.Attr {
	return slog.String(FieldCategory, name)
}

// Sink returns a slog attribute for a sink name.
func Sink(name string) slog.Attr {
	return slog.String(FieldSink, name)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}
