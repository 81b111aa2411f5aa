package telemetry

// Batch is the snapshot a flush cycle reads from the five category buffers.
// Sinks share the same snapshot and must treat it as read-only; mapping
// functions copy on transform rather than mutating in place.
type Batch struct {
	Events     []Event
	Metrics    []MetricSample
	Logs       []LogBatch
	Exceptions []ExceptionReport
	Traces     []WorkerTraceEvent
}

// Empty reports whether the snapshot holds no records at all.
func (b *Batch) Empty() bool {
	return len(b.Events) == 0 &&
		len(b.Metrics) == 0 &&
		len(b.Logs) == 0 &&
		len(b.Exceptions) == 0 &&
		len(b.Traces) == 0
}
