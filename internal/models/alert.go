package models

import (
	"errors"
	"time"
)

// Channel identifies a monitored measurement category.
type Channel string

const (
	ChannelTemperature Channel = "Temperature"
	ChannelHumidity    Channel = "Humidity"
)

// Channels lists every monitored channel, in sampling order.
var Channels = []Channel{ChannelTemperature, ChannelHumidity}

// IsValid checks if the channel is a known measurement category
func (c Channel) IsValid() bool {
	switch c {
	case ChannelTemperature, ChannelHumidity:
		return true
	default:
		return false
	}
}

// Status represents the alert lifecycle state. Transitions are monotone:
// Open may become Acknowledged, never the reverse.
type Status string

const (
	StatusOpen         Status = "Open"
	StatusAcknowledged Status = "Acknowledged"
)

// IsValid checks if the status is a known lifecycle state
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusAcknowledged:
		return true
	default:
		return false
	}
}

// Alert is a persisted threshold breach. The JSON field set is the wire
// contract consumed by subscribers and the query API.
type Alert struct {
	// Unique identifier, assigned at insert when empty
	ID string `json:"id"`

	// Channel that breached its threshold
	Type Channel `json:"type"`

	// Measured value at trigger time
	Value float64 `json:"value"`

	// Threshold in effect when the alert was created
	Threshold float64 `json:"threshold"`

	// Creation time, UTC, assigned at persistence and never mutated
	CreatedAt time.Time `json:"createdAt"`

	// Lifecycle state
	Status Status `json:"status"`
}

// Validation errors
var (
	ErrInvalidChannel = errors.New("unknown channel")
	ErrInvalidStatus  = errors.New("invalid alert status")
	ErrUnboundedValue = errors.New("reading value is not a finite number")
)

// Validate checks if the Alert carries a known channel and status.
func (a *Alert) Validate() error {
	if !a.Type.IsValid() {
		return ErrInvalidChannel
	}
	if !a.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Reading is a single synthetic measurement. Readings are ephemeral: the
// sampler produces one per channel per cycle and the evaluator consumes it
// immediately; nothing persists them.
type Reading struct {
	Channel    Channel
	Value      float64
	ObservedAt time.Time
}

// ThresholdConfig is the singleton runtime configuration the sampler reloads
// once per cycle. Updates take effect on the next cycle, never mid-cycle.
type ThresholdConfig struct {
	TempMax     float64   `json:"tempMax"`
	HumidityMax float64   `json:"humidityMax"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Max returns the configured limit for the given channel.
func (c ThresholdConfig) Max(ch Channel) float64 {
	if ch == ChannelHumidity {
		return c.HumidityMax
	}
	return c.TempMax
}
