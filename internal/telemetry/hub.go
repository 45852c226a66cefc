// Package telemetry distributes lifecycle events to SSE subscribers. One
// hub serves the daemon; events carry monotonic IDs so a reconnecting
// client can resume from Last-Event-ID.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one telemetry record.
type Event struct {
	ID   int64                  `json:"id,omitempty"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Event types published by the daemon.
const (
	TypeReady          = "ready"
	TypeHeartbeat      = "heartbeat"
	TypeStateChanged   = "stateChanged"
	TypeClientsChanged = "clientsChanged"
	TypeBlockedClient  = "blockedClient"
	TypeStarted        = "started"
	TypeStopped        = "stopped"
	TypeStartFailure   = "startFailure"
)

const (
	bufferCapacity    = 64
	clientChannelSize = 100
)

type subscriber struct {
	events chan Event
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub fans events out to subscribers and keeps a bounded replay buffer.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]bool
	buffer []Event
	nextID int64

	heartbeat time.Duration
	log       *zap.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub and starts its heartbeat loop.
func NewHub(heartbeat time.Duration, log *zap.Logger) *Hub {
	h := &Hub{
		subs:      make(map[*subscriber]bool),
		nextID:    1,
		heartbeat: heartbeat,
		log:       log.Named("telemetry"),
		done:      make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

// Publish assigns the event an ID, buffers it and fans it out. Slow
// subscribers drop events rather than block the publisher.
func (h *Hub) Publish(eventType string, data map[string]interface{}) {
	h.mu.Lock()
	ev := Event{ID: h.nextID, Type: eventType, Data: data}
	h.nextID++
	h.buffer = append(h.buffer, ev)
	if len(h.buffer) > bufferCapacity {
		h.buffer = h.buffer[len(h.buffer)-bufferCapacity:]
	}
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber", zap.String("type", eventType))
		}
	}
}

// Subscribe streams events to w until the request context is cancelled or
// the hub closes. Honors the Last-Event-ID header for replay.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastID int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastID = id
		}
	}

	sub := &subscriber{events: make(chan Event, clientChannelSize)}
	h.mu.Lock()
	h.subs[sub] = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.close()
	}()

	if err := writeEvent(w, flusher, Event{Type: TypeReady, Data: map[string]interface{}{"ts": time.Now().UTC()}}); err != nil {
		return err
	}
	for _, ev := range h.replay(lastID) {
		if err := writeEvent(w, flusher, ev); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev, ok := <-sub.events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, flusher, ev); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) replay(lastID int64) []Event {
	if lastID <= 0 {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Event
	for _, ev := range h.buffer {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) heartbeatLoop() {
	if h.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.Publish(TypeHeartbeat, map[string]interface{}{"ts": time.Now().UTC()})
		}
	}
}

// SubscriberCount reports currently attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops the heartbeat and detaches all subscribers.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if ev.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
