// Package seeder generates synthetic telemetry against a running collector,
// for demos and load checks.
package seeder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// Runner posts generated records to the collector's ingest API.
type Runner struct {
	profile *Profile
	client  *http.Client
}

// NewRunner creates a seeder runner for the given profile.
func NewRunner(profile *Profile) *Runner {
	return &Runner{
		profile: profile,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Run generates and sends profile.Count records, one every profile.Interval.
func (r *Runner) Run() error {
	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Seeding %d records against %s (kinds: %v)",
		r.profile.Count, r.profile.CollectorURL, r.profile.Kinds)

	sent, failed := 0, 0
	for i := 0; i < r.profile.Count; i++ {
		kind := r.profile.Kinds[rand.Intn(len(r.profile.Kinds))]
		if err := r.sendOne(kind); err != nil {
			failed++
			log.Printf("send %s failed: %v", kind, err)
		} else {
			sent++
		}
		if r.profile.Interval > 0 {
			time.Sleep(r.profile.Interval)
		}
	}

	log.Printf("Seeding done: %d sent, %d failed", sent, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, r.profile.Count)
	}
	return nil
}

func (r *Runner) sendOne(kind string) error {
	switch kind {
	case "event":
		return r.post("/v1/events", r.makeEvent())
	case "metric":
		return r.post("/v1/metrics", r.makeMetric())
	case "exception":
		return r.post("/v1/exceptions", r.makeException())
	case "trace":
		return r.post("/v1/traces", r.makeTrace())
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
}

func (r *Runner) makeEvent() telemetry.Event {
	return telemetry.Event{
		SpecVersion: telemetry.CloudEventsSpecVersion,
		ID:          uuid.New().String(),
		Source:      "/seeder/" + gofakeit.AppName(),
		Type:        "video." + gofakeit.Verb(),
		Time:        time.Now().UTC().Format(time.RFC3339),
		Data: map[string]any{
			"userId":  gofakeit.Username(),
			"country": gofakeit.CountryAbr(),
			"page":    gofakeit.URL(),
		},
		Attributes: []string{"country"},
	}
}

func (r *Runner) makeMetric() telemetry.MetricSample {
	return telemetry.MetricSample{
		Name:  "latency_ms",
		Value: float64(gofakeit.IntRange(1, 2000)),
		Attributes: map[string]string{
			"region": gofakeit.RandomString([]string{"eu", "us", "ap"}),
		},
		Timestamp: time.Now().UTC(),
	}
}

func (r *Runner) makeException() telemetry.ExceptionReport {
	return telemetry.ExceptionReport{
		Message:    gofakeit.Sentence(6),
		Name:       gofakeit.RandomString([]string{"TypeError", "RangeError", "FetchError"}),
		Stack:      fmt.Sprintf("at %s (%s:%d)", gofakeit.Word(), gofakeit.Word()+".ts", gofakeit.IntRange(1, 400)),
		DistinctID: gofakeit.Username(),
		Timestamp:  time.Now().UTC(),
	}
}

func (r *Runner) makeTrace() telemetry.WorkerTraceEvent {
	now := time.Now().UnixMilli()
	return telemetry.WorkerTraceEvent{
		ScriptName:     gofakeit.RandomString([]string{"api-gateway", "analytics", "auth-worker"}),
		Outcome:        gofakeit.RandomString([]string{"ok", "exception", "exceededCpu"}),
		EventTimestamp: now,
		Logs: []telemetry.TraceLog{
			{Level: "info", Message: []any{"handled", gofakeit.URL()}, Timestamp: now},
			{Level: "warn", Message: []any{"slow upstream"}, Timestamp: now},
		},
		Request: &telemetry.TraceRequest{
			URL:    gofakeit.URL(),
			Method: gofakeit.HTTPMethod(),
			Colo:   gofakeit.RandomString([]string{"LHR", "FRA", "IAD"}),
		},
	}
}

func (r *Runner) post(path string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.profile.CollectorURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.profile.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.profile.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
