// Package broadcast implements the named-channel pub/sub hub (§4.15): the
// widget, dashboard and demo channels the session evaluator and job runner
// push frames onto, adapted from the teacher's in-process EventBus.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
)

// Channel names the broadcast hub recognizes.
const (
	ChannelWidget    = "widget"
	ChannelDashboard = "dashboard"
	ChannelDemo      = "demo"
)

// Frame is a single pushed message: a type tag plus an opaque payload, the
// wire shape described in spec §6 ("{type, data}").
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
}

// JSON serializes the frame.
func (f Frame) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// subscriber holds one open channel and its optional session filter.
type subscriber struct {
	ch        chan Frame
	sessionID string // "" means no filter: receive every frame on this channel
}

// Hub is the broadcast registry: named channels, each with subscribers
// optionally filtered by sessionId. Delivery is best-effort and
// fire-and-forget; a full subscriber channel drops the frame rather than
// blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber // channel -> subscribers
	logger *log.Logger

	bufferSize int
}

// NewHub constructs an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		subs:       make(map[string][]*subscriber),
		logger:     log.New(log.Writer(), "[BROADCAST] ", log.LstdFlags),
		bufferSize: 64,
	}
}

// Subscription is a live subscriber's handle: read Frames from C, call
// Close when done.
type Subscription struct {
	C      <-chan Frame
	hub    *Hub
	channel string
	sub    *subscriber
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.channel, s.sub)
}

// Subscribe registers a new subscriber on channel, optionally filtered to
// frames for sessionID ("" subscribes to every frame on the channel).
func (h *Hub) Subscribe(channel, sessionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan Frame, h.bufferSize), sessionID: sessionID}
	h.subs[channel] = append(h.subs[channel], sub)

	return &Subscription{C: sub.ch, hub: h, channel: channel, sub: sub}
}

func (h *Hub) unsubscribe(channel string, target *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[channel]
	filtered := make([]*subscriber, 0, len(subs))
	for _, s := range subs {
		if s != target {
			filtered = append(filtered, s)
		}
	}
	h.subs[channel] = filtered
	close(target.ch)
}

// BroadcastToChannel delivers payload to every open subscriber on channel,
// regardless of session filter.
func (h *Hub) BroadcastToChannel(channel string, frame Frame) {
	h.publish(channel, frame, "")
}

// BroadcastToChannelForSession delivers payload only to subscribers on
// channel whose session filter matches sessionID, or who have no filter.
func (h *Hub) BroadcastToChannelForSession(channel, sessionID string, frame Frame) {
	h.publish(channel, frame, sessionID)
}

// publish snapshots the subscriber list under a brief read lock so the
// actual send loop proceeds lock-free, per §5's concurrency model.
func (h *Hub) publish(channel string, frame Frame, sessionFilter string) {
	h.mu.RLock()
	subs := make([]*subscriber, len(h.subs[channel]))
	copy(subs, h.subs[channel])
	h.mu.RUnlock()

	for _, s := range subs {
		if sessionFilter != "" && s.sessionID != "" && s.sessionID != sessionFilter {
			continue
		}
		select {
		case s.ch <- frame:
		default:
			h.logger.Printf("dropping frame on %s: subscriber buffer full", channel)
		}
	}
}

// SubscriberCount returns the number of live subscribers across every
// channel, mainly for telemetry/health reporting.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}
