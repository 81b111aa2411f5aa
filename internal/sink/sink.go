// Package sink holds the adapters for the downstream observability backends.
// Each sink consumes the subset of a flush snapshot it cares about and is only
// ever invoked by the flush controller, inside its own failure boundary.
package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Sink delivers part of a flush snapshot to one downstream backend.
// Dispatch must treat the snapshot as read-only; multiple sinks consume the
// same snapshot independently.
type Sink interface {
	Name() string
	Dispatch(ctx context.Context, batch *telemetry.Batch) error
}

// Auth selects between the two authentication schemes the OTLP-speaking
// backends use: a plain bearer token, or basic auth of instanceID:token.
type Auth struct {
	BearerToken string
	InstanceID  string
	Token       string
}

func (a Auth) apply(req *http.Request) {
	switch {
	case a.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+a.BearerToken)
	case a.InstanceID != "":
		req.SetBasicAuth(a.InstanceID, a.Token)
	}
}

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 2048

// checkResponse turns a non-2xx response into an error carrying status and a
// body excerpt, enough context for an operator to diagnose from logs.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
}
