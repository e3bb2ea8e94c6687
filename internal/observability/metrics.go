package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tempconv"

// Metrics holds the Prometheus counters, histograms, and gauges for the conversion service.
type Metrics struct {
	Conversions        *prometheus.CounterVec // labels: source={model,fallback}
	ConversionDuration prometheus.Histogram
	InvalidInputs      prometheus.Counter
	HistoryClears      prometheus.Counter
	HistoryStoreErrors *prometheus.CounterVec // labels: op={load,save}

	// Model metrics.
	ModelLoads        *prometheus.CounterVec // labels: outcome={success,error}
	ModelLoadDuration prometheus.Histogram
	ModelLoaded       prometheus.Gauge
	PredictionCache   *prometheus.CounterVec // labels: result={hit,miss}

	// HTTP metrics.
	HTTPRequests        *prometheus.CounterVec   // labels: route, method, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: route, method

	// Event relay metrics.
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	EventLoadErrors prometheus.Counter
	EventBatchSize  prometheus.Histogram
	RelayRunning    prometheus.Gauge

	SessionsSwept prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Conversions,
		m.ConversionDuration,
		m.InvalidInputs,
		m.HistoryClears,
		m.HistoryStoreErrors,
		m.ModelLoads,
		m.ModelLoadDuration,
		m.ModelLoaded,
		m.PredictionCache,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.EventsPublished,
		m.EventsDropped,
		m.EventLoadErrors,
		m.EventBatchSize,
		m.RelayRunning,
		m.SessionsSwept,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can build as many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Recorded conversions by the path that produced the value.",
		}, []string{"source"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent producing a single Fahrenheit value, including model load on first use.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		InvalidInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_inputs_total",
			Help:      "Submitted values that could not be parsed as a finite number.",
		}),
		HistoryClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_clears_total",
			Help:      "Requests that cleared the session history.",
		}),
		HistoryStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_store_errors_total",
			Help:      "Session history read/write failures by operation.",
		}, []string{"op"}),
		ModelLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model artifact load attempts by outcome.",
		}, []string{"outcome"}),
		ModelLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_duration_seconds",
			Help:      "Duration of a model artifact load.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 once the model has been loaded, 0 before.",
		}),
		PredictionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method, and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Conversion events written to the sink topic.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Conversion events dropped because the relay queue was full or the batch failed.",
		}),
		EventLoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_load_errors_total",
			Help:      "Failed batch writes to the sink topic.",
		}),
		EventBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_batch_size",
			Help:      "Number of conversion events per batch written to Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		RelayRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_relay_running",
			Help:      "1 when the event relay is active, 0 when shut down.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by the janitor.",
		}),
	}
}
