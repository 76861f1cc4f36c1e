package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// dedupWindow is how many recent entry ids a subscription remembers. Every
// serve instance LISTENs on the same table and republishes each entry, so the
// channel carries one copy per instance.
const dedupWindow = 1024

// RedisPublisher publishes audit entries as JSON on a Redis channel so other
// instances and external consumers can follow the history.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

var _ Sink = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger.Named("redis-feed")}
}

// Publish implements Sink.
func (p *RedisPublisher) Publish(ctx context.Context, entry *models.AuditLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe relays entries published on the channel into fn until ctx is done.
// Each entry is delivered once however many instances republished it.
func (p *RedisPublisher) Subscribe(ctx context.Context, fn func(*models.AuditLogEntry)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	relay := newRelay(fn, p.logger)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			relay.handle(msg.Payload)
		}
	}
}

// relay decodes channel payloads and drops ids it has already delivered.
type relay struct {
	fn     func(*models.AuditLogEntry)
	logger *zap.Logger
	seen   map[uuid.UUID]struct{}
	order  []uuid.UUID
	next   int
}

func newRelay(fn func(*models.AuditLogEntry), logger *zap.Logger) *relay {
	return &relay{
		fn:     fn,
		logger: logger,
		seen:   make(map[uuid.UUID]struct{}, dedupWindow),
		order:  make([]uuid.UUID, 0, dedupWindow),
	}
}

func (r *relay) handle(payload string) {
	var entry models.AuditLogEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		r.logger.Warn("Skipping malformed audit payload",
			zap.Int("bytes", len(payload)),
			zap.Error(err))
		return
	}
	if _, dup := r.seen[entry.ID]; dup {
		return
	}
	r.remember(entry.ID)
	r.fn(&entry)
}

func (r *relay) remember(id uuid.UUID) {
	if len(r.order) < dedupWindow {
		r.order = append(r.order, id)
	} else {
		delete(r.seen, r.order[r.next])
		r.order[r.next] = id
		r.next = (r.next + 1) % dedupWindow
	}
	r.seen[id] = struct{}{}
}
