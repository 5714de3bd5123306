// Package hub is the in-memory pub/sub channel for live alert delivery.
// It is a notification channel, not a durable log: subscribers that connect
// after a publish never see it and must catch up through the query API.
package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"alertd/internal/logger"
	"alertd/internal/metrics"
	"alertd/internal/models"
)

const defaultSendBuffer = 64

// Subscriber is a live delivery handle. Alerts arrive on its channel in
// publish order until it is unsubscribed or evicted, after which the channel
// is closed.
type Subscriber struct {
	ch chan models.Alert
}

// Alerts returns the delivery channel.
func (s *Subscriber) Alerts() <-chan models.Alert {
	return s.ch
}

// Hub maintains the set of live subscribers and fans each published alert
// out to all of them.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	buffer int
	log    zerolog.Logger
}

// New creates a hub. sendBuffer is the per-subscriber channel capacity; a
// subscriber that falls that far behind is evicted rather than allowed to
// block the publisher.
func New(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		buffer: sendBuffer,
		log:    logger.WithComponent("hub"),
	}
}

// Subscribe registers a new delivery handle.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan models.Alert, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.HubSubscribers.Set(float64(n))
	h.log.Debug().Int("subscribers", n).Msg("subscriber registered")
	return sub
}

// Unsubscribe removes a handle and closes its channel. Safe to call more
// than once and safe to race with Publish eviction.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		metrics.HubSubscribers.Set(float64(n))
		h.log.Debug().Int("subscribers", n).Msg("subscriber unregistered")
	}
}

// Publish delivers an alert to every subscriber live at call time. Delivery
// is best-effort: a subscriber with a full buffer is evicted, and one that
// disconnects mid-publish may miss this alert.
func (h *Hub) Publish(alert models.Alert) {
	h.mu.Lock()
	var evicted int
	for sub := range h.subs {
		select {
		case sub.ch <- alert:
		default:
			delete(h.subs, sub)
			close(sub.ch)
			evicted++
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.HubBroadcastsTotal.Inc()
	if evicted > 0 {
		metrics.HubEvictedTotal.Add(float64(evicted))
		metrics.HubSubscribers.Set(float64(n))
		h.log.Warn().Int("evicted", evicted).Msg("evicted slow subscribers")
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
