package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"alertd/internal/models"
)

func newID() string {
	return uuid.NewString()
}

// Memory is an in-process store used by tests and the default dev setup.
type Memory struct {
	mu     sync.RWMutex
	alerts map[string]models.Alert
	order  []string // insertion order, for stable iteration
	cfg    *models.ThresholdConfig
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{alerts: make(map[string]models.Alert)}
}

func (m *Memory) Init(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) Insert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if !alert.Type.IsValid() {
		return models.Alert{}, models.ErrInvalidChannel
	}
	a := normalize(alert)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.alerts[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.alerts[a.ID] = a
	return a, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return models.Alert{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) SetAcknowledged(ctx context.Context, id string) (models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return models.Alert{}, ErrNotFound
	}
	if a.Status != models.StatusAcknowledged {
		a.Status = models.StatusAcknowledged
		m.alerts[id] = a
	}
	return a, nil
}

func (m *Memory) Query(ctx context.Context, f Filter) ([]models.Alert, error) {
	m.mu.RLock()
	out := make([]models.Alert, 0, len(m.order))
	for _, id := range m.order {
		a := m.alerts[id]
		if matches(a, f) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	// Most recent first; insertion order breaks ties so results are stable.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetConfig(ctx context.Context) (models.ThresholdConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		m.cfg = &models.ThresholdConfig{
			TempMax:     DefaultTempMax,
			HumidityMax: DefaultHumidityMax,
			UpdatedAt:   nowUTC(),
		}
	}
	return *m.cfg, nil
}

func (m *Memory) UpsertConfig(ctx context.Context, cfg models.ThresholdConfig) (models.ThresholdConfig, error) {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = nowUTC()
	} else {
		cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	}
	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return cfg, nil
}
