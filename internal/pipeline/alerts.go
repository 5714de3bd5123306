// Package pipeline owns the alert lifecycle: creation, acknowledgement and
// querying, plus threshold configuration updates.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"alertd/internal/logger"
	"alertd/internal/metrics"
	"alertd/internal/models"
	"alertd/internal/store"
)

// Broadcaster pushes a persisted alert to live subscribers.
type Broadcaster interface {
	Publish(alert models.Alert)
}

// Exporter mirrors alerts into an external sink. Enqueue must never block.
type Exporter interface {
	Enqueue(alert models.Alert)
}

// Alerts coordinates persistence and fan-out for alert operations.
type Alerts struct {
	store    store.AlertStore
	hub      Broadcaster
	exporter Exporter
	log      zerolog.Logger
}

// NewAlerts wires the pipeline. exporter may be nil.
func NewAlerts(s store.AlertStore, hub Broadcaster, exporter Exporter) *Alerts {
	return &Alerts{
		store:    s,
		hub:      hub,
		exporter: exporter,
		log:      logger.WithComponent("pipeline"),
	}
}

// Create persists a new Open alert and then publishes it. Persistence must
// succeed before any broadcast: clients must never see an alert the store
// rejected.
func (a *Alerts) Create(ctx context.Context, channel models.Channel, value, threshold float64) (models.Alert, error) {
	alert := models.Alert{
		Type:      channel,
		Value:     value,
		Threshold: threshold,
		Status:    models.StatusOpen,
		CreatedAt: time.Now().UTC(),
	}

	persisted, err := a.store.Insert(ctx, alert)
	if err != nil {
		return models.Alert{}, fmt.Errorf("persist alert: %w", err)
	}

	a.hub.Publish(persisted)
	if a.exporter != nil {
		a.exporter.Enqueue(persisted)
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(channel)).Inc()
	a.log.Info().
		Str("alert_id", persisted.ID).
		Str("channel", string(channel)).
		Float64("value", value).
		Float64("threshold", threshold).
		Msg("alert created")

	return persisted, nil
}

// Acknowledge transitions an alert Open -> Acknowledged. The transition is
// idempotent: re-acknowledging returns the current state without error.
// Unknown ids yield store.ErrNotFound.
func (a *Alerts) Acknowledge(ctx context.Context, id string) (models.Alert, error) {
	updated, err := a.store.SetAcknowledged(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	metrics.AlertsAcknowledgedTotal.Inc()
	a.log.Info().Str("alert_id", id).Msg("alert acknowledged")
	return updated, nil
}

// Query returns alerts most recent first. status is a caller-supplied filter
// string; unrecognized values apply no filter. from/to bound CreatedAt
// inclusively when non-nil.
func (a *Alerts) Query(ctx context.Context, status string, from, to *time.Time) ([]models.Alert, error) {
	return a.store.Query(ctx, store.Filter{
		Status: store.NormalizeStatus(status),
		From:   from,
		To:     to,
	})
}
