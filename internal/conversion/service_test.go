package conversion_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/conversion"
	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/couchcryptid/temperature-predictor/internal/predictor"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type modelFunc func([]float64) ([]float64, error)

func (f modelFunc) Predict(in []float64) ([]float64, error) { return f(in) }

type staticSource struct {
	model predictor.Model
	err   error
}

func (s staticSource) Get() (predictor.Model, error) { return s.model, s.err }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ConversionEvent
}

func (p *recordingPublisher) Publish(e domain.ConversionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func newService(src conversion.ModelSource, opts ...conversion.Option) (*conversion.Service, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return conversion.NewService(src, logger, metrics, opts...), metrics
}

func TestConvert_ModelPath(t *testing.T) {
	svc, metrics := newService(staticSource{model: modelFunc(func(in []float64) ([]float64, error) {
		return []float64{in[0]*1.79 + 32.1}, nil
	})})

	c := svc.Convert(context.Background(), 100)

	assert.False(t, c.UsedFallback)
	assert.InDelta(t, 211.1, c.Fahrenheit, 1e-9)
	assert.Equal(t, 100.0, c.Celsius)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Conversions.WithLabelValues("model")))
}

func TestConvert_FallbackOnAnyFailure(t *testing.T) {
	tests := []struct {
		name string
		src  conversion.ModelSource
	}{
		{name: "load error", src: staticSource{err: errors.New("artifact missing")}},
		{name: "predict error", src: staticSource{model: modelFunc(func([]float64) ([]float64, error) {
			return nil, errors.New("bad input shape")
		})}},
		{name: "empty output", src: staticSource{model: modelFunc(func([]float64) ([]float64, error) {
			return []float64{}, nil
		})}},
		{name: "nan output", src: staticSource{model: modelFunc(func([]float64) ([]float64, error) {
			return []float64{math.NaN()}, nil
		})}},
		{name: "inf output", src: staticSource{model: modelFunc(func([]float64) ([]float64, error) {
			return []float64{math.Inf(1)}, nil
		})}},
		{name: "model panic", src: staticSource{model: modelFunc(func([]float64) ([]float64, error) {
			panic("tensor allocation failed")
		})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, metrics := newService(tt.src)

			for _, valor := range []float64{-40, 0, 37.5, 100} {
				c := svc.Convert(context.Background(), valor)
				assert.True(t, c.UsedFallback)
				assert.Equal(t, valor*1.8+32, c.Fahrenheit)
			}
			assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Conversions.WithLabelValues("fallback")))
		})
	}
}

func TestConvert_HundredWithFallback(t *testing.T) {
	svc, _ := newService(staticSource{err: errors.New("disabled")})

	c := svc.Convert(context.Background(), 100)

	assert.True(t, c.UsedFallback)
	assert.Equal(t, 212.0, c.Fahrenheit)
	assert.Equal(t, domain.HistoryEntry{When: c.Entry().When, Celsius: 100, Fahrenheit: 212}, c.Entry())
}

func TestConvert_RetriesLoadOnNextCall(t *testing.T) {
	attempts := 0
	h := predictor.NewHandle(func() (predictor.Model, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return modelFunc(func(in []float64) ([]float64, error) { return []float64{in[0] + 1000}, nil }), nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	svc, _ := newService(h)

	first := svc.Convert(context.Background(), 1)
	second := svc.Convert(context.Background(), 1)

	assert.True(t, first.UsedFallback)
	assert.False(t, second.UsedFallback)
	assert.Equal(t, 1001.0, second.Fahrenheit)
}

func TestConvert_TimestampFromClock(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	defer domain.SetClock(nil)

	svc, _ := newService(staticSource{err: errors.New("disabled")})
	c := svc.Convert(context.Background(), 0)

	assert.Equal(t, fixed, c.Timestamp)
	assert.Equal(t, "2024-04-26T15:10:00Z", c.Entry().When)
}

func TestConvert_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(staticSource{err: errors.New("disabled")}, conversion.WithPublisher(pub))

	svc.Convert(context.Background(), 21.5)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 21.5, ev.Celsius)
	assert.Equal(t, 70.7, ev.Fahrenheit)
	assert.Equal(t, "fallback", ev.Source)
	assert.True(t, ev.UsedFallback)
}
