package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() Event {
	return Event{
		SpecVersion: "1.0",
		ID:          "evt-1",
		Source:      "/service/analytics",
		Type:        "video.play",
		Time:        "2026-08-30T12:00:00Z",
		Data:        map[string]any{"userId": "u1"},
	}
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr bool
	}{
		{
			name:   "valid envelope",
			mutate: func(e *Event) {},
		},
		{
			name:   "valid without time",
			mutate: func(e *Event) { e.Time = "" },
		},
		{
			name:    "wrong specversion",
			mutate:  func(e *Event) { e.SpecVersion = "0.3" },
			wantErr: true,
		},
		{
			name:    "missing id",
			mutate:  func(e *Event) { e.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing source",
			mutate:  func(e *Event) { e.Source = "" },
			wantErr: true,
		},
		{
			name:    "missing type",
			mutate:  func(e *Event) { e.Type = "" },
			wantErr: true,
		},
		{
			name:    "unparseable time",
			mutate:  func(e *Event) { e.Time = "yesterday" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(&e)

			err := e.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventValidateNil(t *testing.T) {
	var e *Event
	assert.ErrorIs(t, e.Validate(), ErrInvalidEvent)
}

func TestEventTimestamp(t *testing.T) {
	e := validEvent()
	want, err := time.Parse(time.RFC3339, e.Time)
	require.NoError(t, err)
	assert.True(t, e.Timestamp().Equal(want))

	e.Time = ""
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp(), time.Minute)
}

func TestBatchEmpty(t *testing.T) {
	b := &Batch{}
	assert.True(t, b.Empty())

	b.Metrics = append(b.Metrics, MetricSample{Name: "latency_ms", Value: 1})
	assert.False(t, b.Empty())
}
