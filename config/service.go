package config

import (
	"fmt"
	"time"
)

// ServiceConfig controls the tick loop.
type ServiceConfig struct {
	TickIntervalMS int `json:"tick_interval_ms"`
	AckTimeoutMS   int `json:"ack_timeout_ms"`
	InboxSize      int `json:"inbox_size"`
}

// SetDefaults applies sane defaults.
func (c *ServiceConfig) SetDefaults() {
	if c.TickIntervalMS == 0 {
		c.TickIntervalMS = 500
	}
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = 2000
	}
	if c.InboxSize == 0 {
		c.InboxSize = 256
	}
}

// Validate checks mandatory fields.
func (c ServiceConfig) Validate() error {
	if c.TickIntervalMS < 0 || c.AckTimeoutMS < 0 || c.InboxSize < 0 {
		return fmt.Errorf("negative service setting")
	}
	return nil
}

func (c ServiceConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

func (c ServiceConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// ElevatorConfig declares a car known at startup. Car state reports replace
// it once the controller comes online.
type ElevatorConfig struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
	Floor    int    `json:"floor"`
}

// SetDefaults applies sane defaults.
func (c *ElevatorConfig) SetDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 8
	}
	if c.Floor == 0 {
		c.Floor = 1
	}
}

// Validate checks the car against the building size.
func (c ElevatorConfig) Validate(floors int) error {
	if c.ID == "" {
		return fmt.Errorf("elevator id is required")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("elevator %s: negative capacity", c.ID)
	}
	if c.Floor < 1 || c.Floor > floors {
		return fmt.Errorf("elevator %s: floor %d out of range", c.ID, c.Floor)
	}
	return nil
}
