package seeder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile controls synthetic telemetry generation.
type Profile struct {
	CollectorURL string
	Token        string
	Count        int
	Interval     time.Duration
	Kinds        []string
}

// DefaultProfile returns a profile that exercises every record kind against a
// local collector.
func DefaultProfile() *Profile {
	return &Profile{
		CollectorURL: "http://localhost:8090",
		Count:        100,
		Interval:     50 * time.Millisecond,
		Kinds:        []string{"event", "metric", "exception", "trace"},
	}
}

// LoadProfile reads a YAML profile, falling back to defaults for unset fields.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var raw struct {
		CollectorURL string   `yaml:"collector_url"`
		Token        string   `yaml:"token"`
		Count        int      `yaml:"count"`
		Interval     string   `yaml:"interval"`
		Kinds        []string `yaml:"kinds"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	if raw.CollectorURL != "" {
		p.CollectorURL = raw.CollectorURL
	}
	if raw.Token != "" {
		p.Token = raw.Token
	}
	if raw.Count > 0 {
		p.Count = raw.Count
	}
	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse profile interval: %w", err)
		}
		p.Interval = interval
	}
	if len(raw.Kinds) > 0 {
		p.Kinds = raw.Kinds
	}
	return p, nil
}
