package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/logging"
	"github.com/hodlisma/hodlisma-engine/pkg/retry"
)

// AuditLogChannel is the NOTIFY channel fed by the audit_logs insert trigger.
const AuditLogChannel = "audit_logs_inserted"

// NotificationHandler receives the payload of one notification.
type NotificationHandler = func(ctx context.Context, payload string)

// Listener holds a dedicated connection LISTENing on a channel. LISTEN state is
// per-connection, so it cannot share the pool.
type Listener struct {
	connURL string
	channel string
	logger  *zap.Logger
}

// NewListener creates a listener for channel on the database at connURL.
func NewListener(connURL, channel string, logger *zap.Logger) *Listener {
	return &Listener{
		connURL: connURL,
		channel: channel,
		logger:  logger.Named("listener").With(zap.String("channel", channel)),
	}
}

// Run blocks until ctx is cancelled, calling handler for every notification.
// Dropped connections are re-established with backoff.
func (l *Listener) Run(ctx context.Context, handler NotificationHandler) error {
	backoff := retry.NewBackoff(retry.ForeverConfig())

	for {
		err := l.listenOnce(ctx, handler, backoff)
		if ctx.Err() != nil {
			return nil
		}

		delay := backoff.Next()
		l.logger.Warn("Listener connection lost, reconnecting",
			zap.String("error", logging.SanitizeError(err)),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context, handler NotificationHandler, backoff *retry.Backoff) error {
	conn, err := pgx.Connect(ctx, l.connURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	l.logger.Info("Listening for notifications")
	backoff.Reset()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		handler(ctx, n.Payload)
	}
}
