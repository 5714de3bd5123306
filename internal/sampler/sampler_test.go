package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alertd/internal/models"
)

type recordingCreator struct {
	mu      sync.Mutex
	created []models.Alert
	err     error
}

func (r *recordingCreator) Create(ctx context.Context, channel models.Channel, value, threshold float64) (models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Alert{}, r.err
	}
	a := models.Alert{Type: channel, Value: value, Threshold: threshold}
	r.created = append(r.created, a)
	return a, nil
}

func (r *recordingCreator) snapshot() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, len(r.created))
	copy(out, r.created)
	return out
}

type stubConfigs struct {
	mu  sync.Mutex
	cfg models.ThresholdConfig
	err error
}

func (s *stubConfigs) Get(ctx context.Context) (models.ThresholdConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.ThresholdConfig{}, s.err
	}
	return s.cfg, nil
}

func (s *stubConfigs) set(cfg models.ThresholdConfig, err error) {
	s.mu.Lock()
	s.cfg = cfg
	s.err = err
	s.mu.Unlock()
}

func TestCycleEmitsAlertsWithThreshold(t *testing.T) {
	creator := &recordingCreator{}
	s := New(creator, &stubConfigs{cfg: models.ThresholdConfig{TempMax: 80, HumidityMax: 60}},
		WithRand(func() float64 { return 0.99 }))

	s.loadConfig(context.Background())
	s.cycle(context.Background())

	got := creator.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected both channels to breach, got %d alerts", len(got))
	}
	for _, a := range got {
		switch a.Type {
		case models.ChannelTemperature:
			if a.Threshold != 80 {
				t.Errorf("temperature alert carried threshold %v, want 80", a.Threshold)
			}
			if a.Value < 10 || a.Value > 120 {
				t.Errorf("temperature value %v out of bounds", a.Value)
			}
		case models.ChannelHumidity:
			if a.Threshold != 60 {
				t.Errorf("humidity alert carried threshold %v, want 60", a.Threshold)
			}
			if a.Value < 0 || a.Value > 100 {
				t.Errorf("humidity value %v out of bounds", a.Value)
			}
		default:
			t.Errorf("unexpected channel %s", a.Type)
		}
	}
}

func TestCycleQuietWhenUnderThresholds(t *testing.T) {
	creator := &recordingCreator{}
	s := New(creator, &stubConfigs{cfg: models.ThresholdConfig{TempMax: 200, HumidityMax: 100}},
		WithRand(func() float64 { return 0.5 }))

	s.loadConfig(context.Background())
	s.cycle(context.Background())

	if n := len(creator.snapshot()); n != 0 {
		t.Fatalf("expected quiet cycle, got %d alerts", n)
	}
}

func TestFailedReloadKeepsPreviousThresholds(t *testing.T) {
	configs := &stubConfigs{cfg: models.ThresholdConfig{TempMax: 80, HumidityMax: 60}}
	s := New(&recordingCreator{}, configs)

	s.loadConfig(context.Background())
	if s.thresholds.TempMax != 80 {
		t.Fatalf("initial load failed: %+v", s.thresholds)
	}

	configs.set(models.ThresholdConfig{}, errors.New("db gone"))
	s.loadConfig(context.Background())
	if s.thresholds.TempMax != 80 || s.thresholds.HumidityMax != 60 {
		t.Fatalf("thresholds lost on failed reload: %+v", s.thresholds)
	}

	configs.set(models.ThresholdConfig{TempMax: 90, HumidityMax: 70}, nil)
	s.loadConfig(context.Background())
	if s.thresholds.TempMax != 90 {
		t.Fatalf("recovered reload not applied: %+v", s.thresholds)
	}
}

func TestCreateFailureDoesNotAbortCycle(t *testing.T) {
	creator := &recordingCreator{err: errors.New("store down")}
	s := New(creator, &stubConfigs{cfg: models.ThresholdConfig{TempMax: 80, HumidityMax: 60}},
		WithRand(func() float64 { return 0.99 }))

	s.loadConfig(context.Background())
	// Must not panic or return early; the error path is per channel.
	s.cycle(context.Background())
	s.cycle(context.Background())
}

func TestRunStopsOnCancel(t *testing.T) {
	creator := &recordingCreator{}
	s := New(creator, &stubConfigs{cfg: models.ThresholdConfig{TempMax: 200, HumidityMax: 100}},
		WithInterval(time.Millisecond, time.Millisecond),
		WithRand(func() float64 { return 0.5 }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sampler did not stop after cancellation")
	}
}

func TestNextWaitStaysInBounds(t *testing.T) {
	s := New(&recordingCreator{}, &stubConfigs{},
		WithInterval(3*time.Second, 6*time.Second))
	for _, r := range []float64{0, 0.25, 0.5, 0.9999} {
		s.randFn = func() float64 { return r }
		w := s.nextWait()
		if w < 3*time.Second || w >= 6*time.Second {
			t.Errorf("nextWait with rand %v = %v, want [3s,6s)", r, w)
		}
	}
}
