package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Janitor periodically removes expired sessions. It runs as a supervised service.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewJanitor creates a janitor that sweeps every interval. A nil clock uses real time.
func NewJanitor(sweeper Sweeper, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Serve sweeps on every tick until ctx is cancelled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Warn("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		j.metrics.SessionsSwept.Add(float64(n))
		j.logger.Debug("expired sessions removed", "count", n)
	}
}

func (j *Janitor) String() string {
	return "session-janitor"
}
