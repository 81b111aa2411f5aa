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

// Capture delivers events, metrics and exceptions to the general-capture
// backend, one event-capture call per record.
type Capture struct {
	host   string
	apiKey string
	client *http.Client
}

// NewCapture creates a capture sink for the given backend host.
func NewCapture(host, apiKey string, timeout time.Duration) *Capture {
	return &Capture{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Capture) Name() string {
	return "capture"
}

func (c *Capture) Dispatch(ctx context.Context, batch *telemetry.Batch) error {
	messages := mapper.CaptureBatch(batch)
	if len(messages) == 0 {
		return nil
	}

	// A failed call does not stop the remaining records; all failures are
	// reported together.
	var errs *multierror.Error
	for _, msg := range messages {
		if err := c.send(ctx, msg); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("capture %q: %w", msg.Event, err))
		}
	}
	return errs.ErrorOrNil()
}

type capturePayload struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties"`
	Timestamp  string         `json:"timestamp"`
}

func (c *Capture) send(ctx context.Context, msg mapper.CaptureMessage) error {
	body, err := json.Marshal(capturePayload{
		APIKey:     c.apiKey,
		Event:      msg.Event,
		DistinctID: msg.DistinctID,
		Properties: msg.Properties,
		Timestamp:  msg.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal capture payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/capture", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send capture call: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}
