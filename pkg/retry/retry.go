// Package retry runs startup and reconnect loops with exponential backoff.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config defines retry behavior with exponential backoff.
// MaxRetries < 0 retries until the context is cancelled.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0
}

// DefaultConfig returns the defaults used for connecting to the database:
// 5 retries starting at 200ms, capped at 5s, doubling each time, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// ForeverConfig retries until the context is cancelled. Used by long-lived
// background loops such as the change-feed listener.
func ForeverConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	cfg.MaxDelay = 30 * time.Second
	return cfg
}

// Backoff yields successive delays for a Config.
type Backoff struct {
	cfg  *Config
	next time.Duration
}

// NewBackoff starts a delay sequence at cfg.InitialDelay.
func NewBackoff(cfg *Config) *Backoff {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Backoff{cfg: cfg, next: cfg.InitialDelay}
}

// Next returns the delay to wait now and advances the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next = time.Duration(float64(b.next) * b.cfg.Multiplier)
	if b.next > b.cfg.MaxDelay {
		b.next = b.cfg.MaxDelay
	}
	return jitter(d, b.cfg.JitterFactor)
}

// Reset restarts the sequence, typically after a success.
func (b *Backoff) Reset() {
	b.next = b.cfg.InitialDelay
}

func jitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	return time.Duration(float64(delay) + float64(delay)*factor*(rand.Float64()*2-1))
}

// Do executes fn until it succeeds, retries are exhausted, or ctx is done.
// Returns the last error from fn, or ctx.Err() if cancelled while waiting.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := NewBackoff(cfg)
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if cfg.MaxRetries >= 0 && attempt >= cfg.MaxRetries {
			return err
		}

		timer := time.NewTimer(b.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
