// Package events forwards conversion events to a sink without ever blocking
// the request path.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

var errRelayStopped = errors.New("event relay is not running")

// BatchLoader writes multiple conversion events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.ConversionEvent) error
}

// Options tune batching.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// Relay queues events in memory and loads them in batches. A full queue
// drops the event; a failed batch is dropped after a backoff pause.
type Relay struct {
	loader        BatchLoader
	queue         chan domain.ConversionEvent
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	running       atomic.Bool
}

// NewRelay creates a relay in front of loader.
func NewRelay(loader BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Relay {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &Relay{
		loader:        loader,
		queue:         make(chan domain.ConversionEvent, opts.BufferSize),
		logger:        logger,
		metrics:       metrics,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		backoff:       initialBackoff,
	}
}

// Publish enqueues event without blocking.
func (r *Relay) Publish(event domain.ConversionEvent) {
	select {
	case r.queue <- event:
	default:
		r.metrics.EventsDropped.Inc()
		r.logger.Debug("event queue full, dropping conversion event", "event_id", event.ID)
	}
}

// CheckReadiness returns nil while Serve is running.
func (r *Relay) CheckReadiness(_ context.Context) error {
	if !r.running.Load() {
		return errRelayStopped
	}
	return nil
}

// Serve runs the batching loop until ctx is cancelled, then makes a final
// bounded attempt to flush whatever is still queued.
func (r *Relay) Serve(ctx context.Context) error {
	r.logger.Info("event relay started", "batch_size", r.batchSize, "flush_interval", r.flushInterval)
	r.running.Store(true)
	r.metrics.RelayRunning.Set(1)
	defer func() {
		r.running.Store(false)
		r.metrics.RelayRunning.Set(0)
	}()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.ConversionEvent, 0, r.batchSize)
	for {
		select {
		case <-ctx.Done():
			r.drain(batch)
			r.logger.Info("event relay stopping", "reason", ctx.Err())
			return ctx.Err()
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Relay) String() string {
	return "event-relay"
}

// flush loads one batch. On failure the batch is counted as dropped and the
// relay pauses with exponential backoff before accepting more work.
func (r *Relay) flush(ctx context.Context, batch []domain.ConversionEvent) {
	r.metrics.EventBatchSize.Observe(float64(len(batch)))

	if err := r.loader.LoadBatch(ctx, batch); err != nil {
		if ctx.Err() != nil {
			r.metrics.EventsDropped.Add(float64(len(batch)))
			return
		}
		r.metrics.EventLoadErrors.Inc()
		r.metrics.EventsDropped.Add(float64(len(batch)))
		r.logger.Error("load event batch failed", "error", err, "batch_size", len(batch), "backoff", r.backoff)
		sharedretry.SleepWithContext(ctx, r.backoff)
		r.backoff = sharedretry.NextBackoff(r.backoff, maxBackoff)
		return
	}

	r.backoff = initialBackoff
	r.metrics.EventsPublished.Add(float64(len(batch)))
}

func (r *Relay) drain(batch []domain.ConversionEvent) {
	for drained := false; !drained; {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
		default:
			drained = true
		}
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for len(batch) > 0 {
		n := min(len(batch), r.batchSize)
		r.flush(ctx, batch[:n])
		batch = batch[n:]
	}
}
