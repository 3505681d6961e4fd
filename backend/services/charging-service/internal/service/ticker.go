package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickObserver runs after every recompute pass.
type TickObserver func(ctx context.Context, now time.Time)

// Ticker drives the periodic recompute of live sessions.
type Ticker struct {
	sessions  *SessionsService
	interval  time.Duration
	observers []TickObserver
	now       func() time.Time
	logger    *zap.Logger
}

// NewTicker builds a ticker. Intervals <= 0 default to five seconds.
func NewTicker(sessions *SessionsService, interval time.Duration, logger *zap.Logger, observers ...TickObserver) *Ticker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Ticker{
		sessions:  sessions,
		interval:  interval,
		observers: observers,
		now:       time.Now,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled. Each pass recomputes from wall-clock time, so a late
// tick just produces a larger step.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	t.logger.Info("session ticker started", zap.Duration("interval", t.interval))
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("session ticker stopped")
			return
		case <-ticker.C:
			t.TickOnce(ctx, t.now())
		}
	}
}

// TickOnce performs one recompute pass and notifies observers.
func (t *Ticker) TickOnce(ctx context.Context, now time.Time) {
	updated := t.sessions.Tick(ctx, now)
	if len(updated) > 0 {
		t.logger.Debug("sessions recomputed", zap.Int("count", len(updated)))
	}
	for _, observe := range t.observers {
		observe(ctx, now)
	}
}
