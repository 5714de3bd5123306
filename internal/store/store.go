// Package store persists alerts and the singleton threshold configuration.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"alertd/internal/config"
	"alertd/internal/models"
)

// ErrNotFound is returned when an alert id does not exist.
var ErrNotFound = errors.New("alert not found")

// Filter narrows a Query. A zero Status means no status filter; From/To bound
// CreatedAt inclusively when non-nil.
type Filter struct {
	Status models.Status
	From   *time.Time
	To     *time.Time
}

// AlertStore is the durable record of alerts.
type AlertStore interface {
	// Insert persists an alert, assigning id and CreatedAt when unset, and
	// returns the persisted representation.
	Insert(ctx context.Context, alert models.Alert) (models.Alert, error)
	// GetByID returns the alert or ErrNotFound.
	GetByID(ctx context.Context, id string) (models.Alert, error)
	// SetAcknowledged transitions Open -> Acknowledged. Acknowledging an
	// already-acknowledged alert succeeds and returns the current state.
	SetAcknowledged(ctx context.Context, id string) (models.Alert, error)
	// Query returns matching alerts ordered by CreatedAt descending.
	Query(ctx context.Context, f Filter) ([]models.Alert, error)
}

// ConfigStore holds the singleton threshold configuration.
type ConfigStore interface {
	// GetConfig returns the current configuration, seeding defaults on first
	// read.
	GetConfig(ctx context.Context) (models.ThresholdConfig, error)
	// UpsertConfig replaces the configuration.
	UpsertConfig(ctx context.Context, cfg models.ThresholdConfig) (models.ThresholdConfig, error)
}

// Store combines both stores behind a single driver.
type Store interface {
	AlertStore
	ConfigStore
	Init(ctx context.Context) error
	Close() error
}

// Seed values for the first configuration read.
const (
	DefaultTempMax     = 75.5
	DefaultHumidityMax = 60
)

// New selects a driver from process configuration.
func New(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// NormalizeStatus maps a caller-supplied status filter to a concrete status.
// Unrecognized values mean "no filter", keeping the query permissive.
func NormalizeStatus(s string) models.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return models.StatusOpen
	case "ack", "acknowledged":
		return models.StatusAcknowledged
	default:
		return ""
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// normalize stamps id/CreatedAt/Status on a new alert and forces UTC.
// Timestamps are normalized at persistence time so reads never re-stamp.
func normalize(a models.Alert) models.Alert {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = nowUTC()
	} else {
		a.CreatedAt = a.CreatedAt.UTC()
	}
	if a.Status == "" {
		a.Status = models.StatusOpen
	}
	return a
}

func matches(a models.Alert, f Filter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && a.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && a.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
