// Package events fans room events out to connected sockets. Delivery is
// at-most-once: a publisher never waits for subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Envelope is one event addressed to a room, or to one connection when
// TargetConn is set.
type Envelope struct {
	Room  string          `json:"room,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	// ExcludeConn is skipped, typically the sender.
	ExcludeConn string `json:"excludeConn,omitempty"`
	TargetConn  string `json:"targetConn,omitempty"`
	// Origin is the id of the publishing server instance.
	Origin string `json:"origin,omitempty"`
}

// New builds an envelope for room with data encoded as JSON.
func New(room, event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	return Envelope{Room: room, Event: event, Data: raw}, nil
}

type Handler func(Envelope)

type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe registers h for every envelope and returns its removal.
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// handlers is the subscriber registry shared by bus implementations.
type handlers struct {
	mu   sync.RWMutex
	next int
	set  map[int]Handler
}

func (hs *handlers) add(h Handler) func() {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.set == nil {
		hs.set = make(map[int]Handler)
	}
	id := hs.next
	hs.next++
	hs.set[id] = h
	return func() {
		hs.mu.Lock()
		delete(hs.set, id)
		hs.mu.Unlock()
	}
}

func (hs *handlers) dispatch(env Envelope) {
	hs.mu.RLock()
	list := make([]Handler, 0, len(hs.set))
	for _, h := range hs.set {
		list = append(list, h)
	}
	hs.mu.RUnlock()

	for _, h := range list {
		h(env)
	}
}

// LocalBus delivers envelopes within the process.
type LocalBus struct {
	handlers
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, env Envelope) error {
	b.dispatch(env)
	return nil
}

func (b *LocalBus) Subscribe(h Handler) func() {
	return b.add(h)
}

func (b *LocalBus) Close() error {
	return nil
}
