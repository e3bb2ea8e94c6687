package predictor

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constModel struct{ value float64 }

func (m constModel) Predict(inputs []float64) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i := range out {
		out[i] = m.value
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandle_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	metrics := observability.NewMetricsForTesting()
	h := NewHandle(func() (Model, error) {
		calls.Add(1)
		return constModel{value: 1}, nil
	}, discardLogger(), metrics)

	assert.False(t, h.Loaded())

	for range 3 {
		m, err := h.Get()
		require.NoError(t, err)
		require.NotNil(t, m)
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, h.Loaded())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelLoads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelLoaded))
}

func TestHandle_ConcurrentFirstUse(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	h := NewHandle(func() (Model, error) {
		calls.Add(1)
		<-release
		return constModel{value: 2}, nil
	}, discardLogger(), observability.NewMetricsForTesting())

	const n = 16
	var wg sync.WaitGroup
	models := make([]Model, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := h.Get()
			assert.NoError(t, err)
			models[i] = m
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "only one goroutine should run the loader")
	for _, m := range models {
		assert.Equal(t, models[0], m)
	}
}

func TestHandle_FailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	metrics := observability.NewMetricsForTesting()
	h := NewHandle(func() (Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("out of memory")
		}
		return constModel{value: 3}, nil
	}, discardLogger(), metrics)

	_, err := h.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
	assert.False(t, h.Loaded())

	m, err := h.Get()
	require.NoError(t, err)
	out, err := m.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, out)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelLoads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelLoads.WithLabelValues("success")))
}

func TestHandle_NilModelIsAnError(t *testing.T) {
	h := NewHandle(func() (Model, error) { return nil, nil }, discardLogger(), observability.NewMetricsForTesting())

	_, err := h.Get()
	assert.Error(t, err)
	assert.False(t, h.Loaded())
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, WriteArtifact(path, linearArtifact(1.8, 32)))
	metrics := observability.NewMetricsForTesting()

	t.Run("cached", func(t *testing.T) {
		m, err := FileLoader(path, 10, metrics)()
		require.NoError(t, err)
		assert.IsType(t, &CachedModel{}, m)

		out, err := m.Predict([]float64{100})
		require.NoError(t, err)
		assert.InDelta(t, 212, out[0], 1e-9)
	})

	t.Run("uncached", func(t *testing.T) {
		m, err := FileLoader(path, 0, metrics)()
		require.NoError(t, err)
		assert.IsType(t, &Network{}, m)
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := FileLoader(filepath.Join(dir, "absent.json"), 10, metrics)()
		assert.Error(t, err)
	})
}
