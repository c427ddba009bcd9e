// Package realtime delivers events to connected users.
package realtime

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotReady is returned while no publisher has been installed.
	ErrNotReady = errors.New("realtime channel is not initialized")
	// ErrAlreadySet is returned when a Holder is initialized twice.
	ErrAlreadySet = errors.New("realtime channel is already initialized")
)

// Publisher sends an event to every connection of one user.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error
}

// Envelope is the JSON frame written to clients and to the event log.
type Envelope struct {
	Event  string      `json:"event"`
	UserID uint64      `json:"user_id"`
	Data   interface{} `json:"data"`
}

// Holder lets services be constructed before the transport exists. It is set
// once during startup.
type Holder struct {
	mu        sync.RWMutex
	publisher Publisher
}

// NewHolder creates an empty Holder
func NewHolder() *Holder {
	return &Holder{}
}

// Set installs the publisher.
func (h *Holder) Set(p Publisher) error {
	if p == nil {
		return errors.New("realtime publisher must not be nil")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.publisher != nil {
		return ErrAlreadySet
	}
	h.publisher = p
	return nil
}

// IsReady reports whether a publisher has been installed.
func (h *Holder) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.publisher != nil
}

// PublishToUser forwards to the installed publisher
func (h *Holder) PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error {
	h.mu.RLock()
	p := h.publisher
	h.mu.RUnlock()
	if p == nil {
		return ErrNotReady
	}
	return p.PublishToUser(ctx, userID, event, payload)
}
