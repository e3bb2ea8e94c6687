// Package conversion turns a Celsius value into a Fahrenheit value, preferring
// the learned model and falling back to the classic formula on any failure.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/couchcryptid/temperature-predictor/internal/predictor"
	"github.com/google/uuid"
)

// ModelSource hands out the shared model, loading it on first use.
type ModelSource interface {
	Get() (predictor.Model, error)
}

// Publisher receives an event for every conversion. Publish must not block.
type Publisher interface {
	Publish(event domain.ConversionEvent)
}

// Service performs conversions.
type Service struct {
	models    ModelSource
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher forwards every conversion to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a conversion service backed by models.
func NewService(models ModelSource, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		models:  models,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Convert never fails: if the model cannot produce a finite value for any
// reason, the classic formula is used and UsedFallback is set.
func (s *Service) Convert(ctx context.Context, celsius float64) domain.Conversion {
	start := time.Now()

	c := domain.Conversion{Celsius: celsius, Timestamp: domain.Now()}
	f, err := s.predict(celsius)
	if err != nil {
		s.logger.WarnContext(ctx, "model unavailable, using fallback formula", "celsius", celsius, "error", err)
		f = domain.Fallback(celsius)
		c.UsedFallback = true
	}
	c.Fahrenheit = f

	s.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	s.metrics.Conversions.WithLabelValues(c.Source()).Inc()

	if s.publisher != nil {
		s.publisher.Publish(domain.NewConversionEvent(uuid.NewString(), c))
	}
	return c
}

// predict runs the model path, converting panics into errors.
func (s *Service) predict(celsius float64) (f float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panic: %v", r)
		}
	}()

	m, err := s.models.Get()
	if err != nil {
		return 0, err
	}
	out, err := m.Predict([]float64{celsius})
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if len(out) == 0 {
		return 0, errors.New("model returned no output")
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return 0, fmt.Errorf("model returned non-finite value %v", out[0])
	}
	return out[0], nil
}
