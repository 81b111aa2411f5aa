// Package handlers implements the ingest API. The handlers are thin: decode,
// append to the matching category buffer, acknowledge. Producers get a
// success response as soon as the record is persisted; everything downstream
// of the buffer is invisible to them.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/httputil"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// maxBodySize caps ingest request bodies at 1 MiB.
const maxBodySize = 1 << 20

type IngestHandler struct {
	buffers *buffer.Manager
	logger  *logging.Logger
}

func NewIngestHandler(buffers *buffer.Manager, logger *logging.Logger) *IngestHandler {
	return &IngestHandler{
		buffers: buffers,
		logger:  logger,
	}
}

// HandleEvent accepts one CloudEvents envelope. Malformed envelopes are the
// only append that can fail for the caller's own reasons.
func (h *IngestHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var event telemetry.Event
	if !h.decode(w, r, &event) {
		return
	}

	if err := h.buffers.Events.Append(r.Context(), event); err != nil {
		if errors.Is(err, telemetry.ErrInvalidEvent) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithContext(r.Context()).Error("append event failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "append failed")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleMetric accepts one metric sample.
func (h *IngestHandler) HandleMetric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sample telemetry.MetricSample
	if !h.decode(w, r, &sample) {
		return
	}
	if sample.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing metric name")
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	h.append(w, r, func() error {
		return h.buffers.Metrics.Append(r.Context(), sample)
	})
}

// HandleLog accepts an opaque, already-OTLP-encoded payload. The body is
// stored byte-for-byte with its content type and never parsed.
func (h *IngestHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "read body failed")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty body")
		return
	}

	lb := telemetry.LogBatch{
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Timestamp:   time.Now().UTC(),
	}

	h.append(w, r, func() error {
		return h.buffers.Logs.Append(r.Context(), lb)
	})
}

// HandleException accepts one exception report.
func (h *IngestHandler) HandleException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var report telemetry.ExceptionReport
	if !h.decode(w, r, &report) {
		return
	}
	if report.Message == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing message")
		return
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}

	h.append(w, r, func() error {
		return h.buffers.Exceptions.Append(r.Context(), report)
	})
}

// HandleTrace accepts one worker invocation snapshot.
func (h *IngestHandler) HandleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var trace telemetry.WorkerTraceEvent
	if !h.decode(w, r, &trace) {
		return
	}
	if trace.Outcome == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing outcome")
		return
	}

	h.append(w, r, func() error {
		return h.buffers.Traces.Append(r.Context(), trace)
	})
}

// Health is the liveness endpoint.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is the readiness endpoint.
func (h *IngestHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *IngestHandler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(into); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *IngestHandler) append(w http.ResponseWriter, r *http.Request, fn func() error) {
	if err := fn(); err != nil {
		h.logger.WithContext(r.Context()).Error("append failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "append failed")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
