package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"alertd/internal/logger"
	"alertd/internal/models"
	"alertd/internal/store"
)

// Allowed threshold ranges.
const (
	TempMaxLow      = 0
	TempMaxHigh     = 200
	HumidityMaxLow  = 0
	HumidityMaxHigh = 100
)

// ValidationError reports a config value outside its allowed range. The
// field name and range are part of the API contract for 400 responses.
type ValidationError struct {
	Field string  `json:"field"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Value float64 `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between %g and %g, got %g", e.Field, e.Min, e.Max, e.Value)
}

// Configs serves reads and validated updates of the threshold configuration.
type Configs struct {
	store store.ConfigStore
	log   zerolog.Logger
}

// NewConfigs wires the config service.
func NewConfigs(s store.ConfigStore) *Configs {
	return &Configs{store: s, log: logger.WithComponent("config")}
}

// Get returns the current threshold configuration.
func (c *Configs) Get(ctx context.Context) (models.ThresholdConfig, error) {
	return c.store.GetConfig(ctx)
}

// Update validates and persists new threshold limits. On a validation error
// the stored configuration is left unchanged.
func (c *Configs) Update(ctx context.Context, tempMax, humidityMax float64) (models.ThresholdConfig, error) {
	if tempMax < TempMaxLow || tempMax > TempMaxHigh {
		return models.ThresholdConfig{}, &ValidationError{
			Field: "tempMax", Min: TempMaxLow, Max: TempMaxHigh, Value: tempMax,
		}
	}
	if humidityMax < HumidityMaxLow || humidityMax > HumidityMaxHigh {
		return models.ThresholdConfig{}, &ValidationError{
			Field: "humidityMax", Min: HumidityMaxLow, Max: HumidityMaxHigh, Value: humidityMax,
		}
	}

	updated, err := c.store.UpsertConfig(ctx, models.ThresholdConfig{
		TempMax:     tempMax,
		HumidityMax: humidityMax,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return models.ThresholdConfig{}, fmt.Errorf("persist config: %w", err)
	}

	c.log.Info().
		Float64("temp_max", tempMax).
		Float64("humidity_max", humidityMax).
		Msg("threshold config updated")
	return updated, nil
}
