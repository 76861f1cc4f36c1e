package realtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

var _ NotificationSource = (*database.Listener)(nil)

type mapLoader map[uuid.UUID]*models.AuditLogEntry

func (m mapLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error) {
	e, ok := m[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

// stubSource replays fixed payloads then returns.
type stubSource []string

func (s stubSource) Run(ctx context.Context, handler func(ctx context.Context, payload string)) error {
	for _, p := range s {
		handler(ctx, p)
	}
	return nil
}

func TestFeed_PublishesLoadedEntries(t *testing.T) {
	entry := newEntry(models.AuditActionAddSavings)
	missing := uuid.New()

	hub := NewHub(zap.NewNop())
	ch, cancel := hub.Subscribe()
	defer cancel()

	feed := NewFeed(stubSource{"not-a-uuid", missing.String(), entry.ID.String()},
		mapLoader{entry.ID: entry}, hub, zap.NewNop())

	assert.NoError(t, feed.Run(context.Background()))

	assert.Len(t, ch, 1)
	assert.Equal(t, entry, <-ch)
}
