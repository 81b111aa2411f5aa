package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// LogPassthrough relays buffered raw log batches to a backend's /v1/logs
// endpoint byte-for-byte. The payload is already OTLP-encoded by the producer;
// only the stored bytes and stored content type are sent.
type LogPassthrough struct {
	name     string
	endpoint string
	auth     Auth
	client   *http.Client
}

// NewLogPassthrough creates a raw log relay for one backend.
func NewLogPassthrough(name, endpoint string, auth Auth, timeout time.Duration) *LogPassthrough {
	return &LogPassthrough{
		name:     name,
		endpoint: endpoint,
		auth:     auth,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *LogPassthrough) Name() string {
	return p.name
}

func (p *LogPassthrough) Dispatch(ctx context.Context, batch *telemetry.Batch) error {
	if len(batch.Logs) == 0 {
		return nil
	}

	var errs *multierror.Error
	for i, lb := range batch.Logs {
		if err := p.send(ctx, lb); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("log batch %d: %w", i, err))
		}
	}
	return errs.ErrorOrNil()
}

func (p *LogPassthrough) send(ctx context.Context, lb telemetry.LogBatch) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/logs", bytes.NewReader(lb.Body))
	if err != nil {
		return fmt.Errorf("create passthrough request: %w", err)
	}

	contentType := lb.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	p.auth.apply(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay log batch: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}
