// Package decisionlog persists one record per scheduling decision so ticks can
// be audited and replayed offline.
package decisionlog

import (
	"context"
	"fmt"
	"time"
)

// Option is the cost one elevator offered for a request.
type Option struct {
	ElevatorID string  `json:"elevator_id"`
	Cost       float64 `json:"cost"`
	Feasible   bool    `json:"feasible"`
}

// Record captures one assignment or deferral.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	TickID       string    `json:"tick_id"`
	RequestID    string    `json:"request_id"`
	Origin       int       `json:"origin"`
	ElevatorID   string    `json:"elevator_id,omitempty"`
	Cost         float64   `json:"cost"`
	TieBroken    bool      `json:"tie_broken"`
	Deferred     bool      `json:"deferred"`
	Reason       string    `json:"reason,omitempty"`
	ModelVersion uint64    `json:"model_version"`
	Degraded     bool      `json:"degraded"`
	Options      []Option  `json:"options"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start      time.Time
	End        time.Time
	TickID     string
	RequestID  string
	ElevatorID string
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.TickID != "" && r.TickID != q.TickID {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	if q.ElevatorID != "" && r.ElevatorID != q.ElevatorID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	Backend    string `json:"backend"` // "", "jsonl", "rotating" or "sqlite"
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills rotation limits.
func (c *Config) SetDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 14
	}
}

// Validate checks the backend name and path.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case "jsonl", "rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("decision log: path required for %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("decision log: unknown backend %q", c.Backend)
	}
}

// Open returns the configured store, or nil when logging is disabled.
func Open(c Config) (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case "jsonl":
		return NewJSONLStore(c.Path)
	case "rotating":
		c.SetDefaults()
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	}
	return nil, nil
}
