package predictor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/observability"
)

// Model produces predictions for a batch of inputs.
type Model interface {
	Predict(inputs []float64) ([]float64, error)
}

// Loader builds a Model. It is called at most once per successful load.
type Loader func() (Model, error)

type loadedModel struct {
	model Model
}

// Handle lazily loads a Model on first use and shares it process-wide.
// Concurrent first callers trigger a single load; a failed load is not
// remembered, so the next call tries again.
type Handle struct {
	current atomic.Pointer[loadedModel]
	mu      sync.Mutex
	load    Loader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandle creates a Handle that loads its model with load.
func NewHandle(load Loader, logger *slog.Logger, metrics *observability.Metrics) *Handle {
	return &Handle{
		load:    load,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the shared model, loading it if no load has succeeded yet.
func (h *Handle) Get() (Model, error) {
	if l := h.current.Load(); l != nil {
		return l.model, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if l := h.current.Load(); l != nil {
		return l.model, nil
	}

	start := time.Now()
	m, err := h.load()
	h.metrics.ModelLoadDuration.Observe(time.Since(start).Seconds())
	if err == nil && m == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		h.metrics.ModelLoads.WithLabelValues("error").Inc()
		h.logger.Warn("model load failed", "error", err)
		return nil, fmt.Errorf("load model: %w", err)
	}

	h.current.Store(&loadedModel{model: m})
	h.metrics.ModelLoads.WithLabelValues("success").Inc()
	h.metrics.ModelLoaded.Set(1)
	h.logger.Info("model loaded", "duration", time.Since(start))
	return m, nil
}

// Loaded reports whether a model is available without triggering a load.
func (h *Handle) Loaded() bool {
	return h.current.Load() != nil
}

// FileLoader returns a Loader that reads a dense-v1 artifact from path. When
// cacheSize is positive the network is wrapped in a CachedModel.
func FileLoader(path string, cacheSize int, metrics *observability.Metrics) Loader {
	return func() (Model, error) {
		a, err := LoadArtifact(path)
		if err != nil {
			return nil, err
		}
		net, err := NewNetwork(a)
		if err != nil {
			return nil, err
		}
		if cacheSize > 0 {
			return NewCachedModel(net, cacheSize, metrics), nil
		}
		return net, nil
	}
}
