package ingestqueue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alertd/internal/models"
)

func TestNextDelayGrowsAndCaps(t *testing.T) {
	d := initialRetryDelay
	seen := []time.Duration{d}
	for i := 0; i < 10; i++ {
		d = nextDelay(d)
		seen = append(seen, d)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("delay shrank: %v -> %v", seen[i-1], seen[i])
		}
		if seen[i] > maxRetryDelay {
			t.Fatalf("delay exceeded cap: %v", seen[i])
		}
	}
	if seen[len(seen)-1] != maxRetryDelay {
		t.Fatalf("delay never reached cap, ended at %v", seen[len(seen)-1])
	}
}

func TestStoppedClientDoesNotConnect(t *testing.T) {
	dialed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dialed = true
	}))
	defer srv.Close()

	c := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "", New(Options{}))
	c.Stop()

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	if dialed {
		t.Fatalf("stopped client still dialed")
	}
}

func TestClientStreamsIntoQueue(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i, id := range []string{"w-1", "w-2"} {
			a := models.Alert{ID: id, Type: models.ChannelTemperature, Value: float64(90 + i), Threshold: 80, Status: models.StatusOpen}
			if err := conn.WriteJSON(a); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	q := New(Options{})
	var mu sync.Mutex
	var states []State
	c := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "token-123", q,
		WithStateFunc(func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for q.PendingLen() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.PendingLen() != 2 {
		t.Fatalf("expected 2 buffered alerts, got %d", q.PendingLen())
	}

	q.Flush()
	got := q.Snapshot()
	if len(got) != 2 || got[0].ID != "w-2" || got[1].ID != "w-1" {
		t.Fatalf("unexpected working set: %+v", got)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("missing bearer header, got %q", gotAuth)
	}

	c.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not shut down")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[len(states)-1] != StateDisconnected {
		t.Fatalf("final state not disconnected: %v", states)
	}
	var connected bool
	for _, s := range states {
		if s == StateConnected {
			connected = true
		}
	}
	if !connected {
		t.Fatalf("client never reported connected: %v", states)
	}
}
