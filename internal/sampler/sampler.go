// Package sampler drives the alerting cycle: it generates one synthetic
// reading per monitored channel, evaluates each against the current
// thresholds, and emits alerts for breaches.
package sampler

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"alertd/internal/evaluate"
	"alertd/internal/logger"
	"alertd/internal/metrics"
	"alertd/internal/models"
)

// Synthetic reading bounds. Temperature straddles the default limit so both
// triggered and quiet cycles occur under normal operation.
const (
	tempMin     = 10
	tempMax     = 120
	humidityMin = 0
	humidityMax = 100
)

// AlertCreator is the slice of the pipeline the sampler needs.
type AlertCreator interface {
	Create(ctx context.Context, channel models.Channel, value, threshold float64) (models.Alert, error)
}

// ConfigSource supplies the current threshold configuration.
type ConfigSource interface {
	Get(ctx context.Context) (models.ThresholdConfig, error)
}

// Sampler runs the perpetual sample/evaluate/emit loop. It is a single
// long-lived task: cycles never overlap.
type Sampler struct {
	creator AlertCreator
	configs ConfigSource
	log     zerolog.Logger

	minWait time.Duration
	maxWait time.Duration
	randFn  func() float64 // in [0,1); injectable for tests

	// Last successfully loaded thresholds. A failed reload keeps these so a
	// transient config-read failure never halts sampling.
	thresholds models.ThresholdConfig
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval overrides the randomized wait bounds.
func WithInterval(min, max time.Duration) Option {
	return func(s *Sampler) {
		s.minWait = min
		s.maxWait = max
	}
}

// WithRand overrides the random source.
func WithRand(fn func() float64) Option {
	return func(s *Sampler) {
		s.randFn = fn
	}
}

// New creates a sampler with 3-6s randomized cycles.
func New(creator AlertCreator, configs ConfigSource, opts ...Option) *Sampler {
	s := &Sampler{
		creator: creator,
		configs: configs,
		log:     logger.WithComponent("sampler"),
		minWait: 3 * time.Second,
		maxWait: 6 * time.Second,
		randFn:  rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the loop until ctx is cancelled. Cancellation is observed at
// the wait between cycles; an in-flight cycle always completes.
func (s *Sampler) Run(ctx context.Context) {
	s.log.Info().Msg("sampler starting")
	s.loadConfig(ctx)

	for {
		s.cycle(ctx)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("sampler stopped")
			return
		case <-time.After(s.nextWait()):
		}

		s.loadConfig(ctx)
	}
}

// cycle samples every channel once. A failure on one channel is logged and
// absorbed; it never aborts the cycle for the remaining channels.
func (s *Sampler) cycle(ctx context.Context) {
	for _, r := range s.readings() {
		threshold := s.thresholds.Max(r.Channel)
		if !evaluate.Breach(r, s.thresholds) {
			continue
		}
		s.log.Info().
			Str("channel", string(r.Channel)).
			Float64("value", r.Value).
			Float64("threshold", threshold).
			Msg("threshold breached")
		if _, err := s.creator.Create(ctx, r.Channel, r.Value, threshold); err != nil {
			metrics.SamplerChannelErrors.WithLabelValues(string(r.Channel)).Inc()
			s.log.Error().Err(err).
				Str("channel", string(r.Channel)).
				Msg("alert creation failed, skipping channel this cycle")
		}
	}
	metrics.SamplerCyclesTotal.Inc()
}

// readings produces one bounded synthetic reading per monitored channel.
func (s *Sampler) readings() []models.Reading {
	now := time.Now().UTC()
	return []models.Reading{
		{Channel: models.ChannelTemperature, Value: s.uniform(tempMin, tempMax), ObservedAt: now},
		{Channel: models.ChannelHumidity, Value: s.uniform(humidityMin, humidityMax), ObservedAt: now},
	}
}

func (s *Sampler) uniform(min, max float64) float64 {
	return min + s.randFn()*(max-min)
}

func (s *Sampler) nextWait() time.Duration {
	spread := s.maxWait - s.minWait
	if spread <= 0 {
		return s.minWait
	}
	return s.minWait + time.Duration(s.randFn()*float64(spread))
}

// loadConfig refreshes thresholds best-effort, keeping the previous values
// on failure.
func (s *Sampler) loadConfig(ctx context.Context) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		metrics.ConfigReloadFailures.Inc()
		s.log.Warn().Err(err).Msg("failed to load configuration, keeping previous values")
		return
	}
	s.thresholds = cfg
	s.log.Debug().
		Float64("temp_max", cfg.TempMax).
		Float64("humidity_max", cfg.HumidityMax).
		Msg("configuration loaded")
}
