// Package mapper translates buffered records into the wire shapes the
// downstream sinks expect. Everything here is a pure function; mapping copies
// its input and never mutates the flush snapshot.
package mapper

// OTLP severity numbers for the levels workers emit.
const (
	SeverityDebug = 5
	SeverityInfo  = 9
	SeverityWarn  = 13
	SeverityError = 17
)

// Severity maps a worker console level onto an OTLP (severityNumber,
// severityText) pair. Unknown levels map to INFO.
func Severity(level string) (int, string) {
	switch level {
	case "debug":
		return SeverityDebug, "DEBUG"
	case "log", "info":
		return SeverityInfo, "INFO"
	case "warn":
		return SeverityWarn, "WARN"
	case "error":
		return SeverityError, "ERROR"
	default:
		return SeverityInfo, "INFO"
	}
}

// ExceptionSeverity is the fixed mapping for worker exceptions.
func ExceptionSeverity() (int, string) {
	return SeverityError, "ERROR"
}
