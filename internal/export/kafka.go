// Package export mirrors created alerts into a Kafka topic for downstream
// consumers. The sink is fire-and-forget: a broker outage is logged and
// counted but never blocks or fails alert creation.
package export

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"alertd/internal/config"
	"alertd/internal/logger"
	"alertd/internal/metrics"
	"alertd/internal/models"
)

// KafkaSink buffers alerts and writes them to a topic in batches.
type KafkaSink struct {
	writer       *kafka.Writer
	in           chan models.Alert
	batchSize    int
	batchTimeout time.Duration
	log          zerolog.Logger
	wg           sync.WaitGroup
}

// NewKafka creates a sink from export configuration.
func NewKafka(cfg config.ExportConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // partition by channel
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaSink{
		writer:       writer,
		in:           make(chan models.Alert, cfg.QueueSize),
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		log:          logger.WithComponent("export"),
	}
}

// Enqueue hands an alert to the sink without blocking. When the buffer is
// full the alert is dropped and counted; the durable record in the store is
// unaffected.
func (s *KafkaSink) Enqueue(alert models.Alert) {
	select {
	case s.in <- alert:
	default:
		metrics.ExportPublishTotal.WithLabelValues("dropped").Inc()
		s.log.Warn().Str("alert_id", alert.ID).Msg("export queue full, alert dropped")
	}
}

// Start launches the background pump.
func (s *KafkaSink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pump(ctx)
	}()
}

// pump accumulates alerts into batches and flushes on size or timeout.
func (s *KafkaSink) pump(ctx context.Context) {
	batch := make([]models.Alert, 0, s.batchSize)
	timer := time.NewTimer(s.batchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.publish(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case alert := <-s.in:
			batch = append(batch, alert)
			if len(batch) >= s.batchSize {
				flush()
				timer.Reset(s.batchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(s.batchTimeout)
		}
	}
}

func (s *KafkaSink) publish(batch []models.Alert) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, alert := range batch {
		data, err := json.Marshal(alert)
		if err != nil {
			metrics.ExportPublishTotal.WithLabelValues("failed").Inc()
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(alert.Type),
			Value: data,
			Time:  alert.CreatedAt,
		})
	}
	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.ExportPublishTotal.WithLabelValues("failed").Add(float64(len(msgs)))
		s.log.Error().Err(err).Int("batch_size", len(msgs)).Msg("export publish failed")
		return
	}
	metrics.ExportPublishTotal.WithLabelValues("success").Add(float64(len(msgs)))
	s.log.Debug().Int("batch_size", len(msgs)).Msg("batch exported")
}

// Close drains the pump and closes the writer.
func (s *KafkaSink) Close() error {
	s.wg.Wait()
	return s.writer.Close()
}
