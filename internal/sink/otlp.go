package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/rawkode-academy/telemetry-sink/internal/mapper"
	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// OTLPLogs posts OTLP-shaped log batches to a backend's /v1/logs endpoint.
// Worker traces always flow through it; with convertCapture set it also
// carries the events/metrics/exceptions that would otherwise only reach the
// capture backend, converted to log records.
type OTLPLogs struct {
	name           string
	endpoint       string
	auth           Auth
	convertCapture bool
	client         *http.Client
}

// NewOTLPLogs creates an OTLP log sink. name distinguishes multiple OTLP
// backends in logs and metrics.
func NewOTLPLogs(name, endpoint string, auth Auth, convertCapture bool, timeout time.Duration) *OTLPLogs {
	return &OTLPLogs{
		name:           name,
		endpoint:       endpoint,
		auth:           auth,
		convertCapture: convertCapture,
		client:         &http.Client{Timeout: timeout},
	}
}

func (o *OTLPLogs) Name() string {
	return o.name
}

func (o *OTLPLogs) Dispatch(ctx context.Context, batch *telemetry.Batch) error {
	var errs *multierror.Error

	if len(batch.Traces) > 0 {
		if err := o.post(ctx, mapper.FromTraces(batch.Traces)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("trace logs: %w", err))
		}
	}

	if o.convertCapture {
		if messages := mapper.CaptureBatch(batch); len(messages) > 0 {
			if err := o.post(ctx, mapper.FromCapture(messages)); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("converted capture records: %w", err))
			}
		}
	}

	return errs.ErrorOrNil()
}

func (o *OTLPLogs) post(ctx context.Context, payload mapper.OTLPPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal otlp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/v1/logs", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create otlp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	o.auth.apply(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("send otlp logs: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}
