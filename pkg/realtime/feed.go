package realtime

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// EntryLoader loads an audit entry by id.
type EntryLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error)
}

// NotificationSource delivers raw notification payloads until ctx is done.
// database.Listener satisfies it.
type NotificationSource interface {
	Run(ctx context.Context, handler func(ctx context.Context, payload string)) error
}

// Feed turns audit_logs insert notifications into hub publications.
type Feed struct {
	source NotificationSource
	loader EntryLoader
	hub    *Hub
	logger *zap.Logger
}

// NewFeed creates a feed.
func NewFeed(source NotificationSource, loader EntryLoader, hub *Hub, logger *zap.Logger) *Feed {
	return &Feed{
		source: source,
		loader: loader,
		hub:    hub,
		logger: logger.Named("audit-feed"),
	}
}

// Run blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	return f.source.Run(ctx, f.Handle)
}

// Handle resolves one notification payload and publishes the entry.
func (f *Feed) Handle(ctx context.Context, payload string) {
	id, err := uuid.Parse(payload)
	if err != nil {
		f.logger.Warn("Ignoring malformed notification", zap.String("payload", payload))
		return
	}

	entry, err := f.loader.GetByID(ctx, id)
	if err != nil {
		f.logger.Error("Failed to load notified audit entry",
			zap.String("audit_id", id.String()),
			zap.Error(err))
		return
	}

	f.hub.Publish(ctx, entry)
}
