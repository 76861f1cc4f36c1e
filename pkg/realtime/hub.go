// Package realtime fans newly recorded audit entries out to live subscribers
// and, optionally, to other instances through Redis.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 32

// Sink receives every entry the hub publishes, after local subscribers.
type Sink interface {
	Publish(ctx context.Context, entry *models.AuditLogEntry) error
}

// Hub delivers audit entries to in-process subscribers. A subscriber whose
// queue is full misses the entry rather than stalling the others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan *models.AuditLogEntry
	nextID int
	buffer int
	sinks  []Sink
	logger *zap.Logger
}

// NewHub creates a hub. Sinks may be nil.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	h := &Hub{
		subs:   make(map[int]chan *models.AuditLogEntry),
		buffer: DefaultBufferSize,
		logger: logger.Named("realtime-hub"),
	}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan *models.AuditLogEntry, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan *models.AuditLogEntry, h.buffer)
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers entry to every subscriber and sink. Sink failures are
// logged and do not affect local delivery.
func (h *Hub) Publish(ctx context.Context, entry *models.AuditLogEntry) {
	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- entry:
		default:
			h.logger.Warn("Dropping audit entry for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("audit_id", entry.ID.String()))
		}
	}
	h.mu.RUnlock()

	for _, s := range h.sinks {
		if err := s.Publish(ctx, entry); err != nil {
			h.logger.Error("Failed to publish audit entry to sink",
				zap.String("audit_id", entry.ID.String()),
				zap.Error(err))
		}
	}
}
