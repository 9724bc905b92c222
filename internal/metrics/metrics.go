// Package metrics records forecast run and HTTP metrics for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry so several recorders can coexist in tests
type Recorder struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	runMAE             *prometheus.GaugeVec
	runsInFlight       prometheus.Gauge
	selectionFallbacks prometheus.Counter
	inputAnomalies     prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_runs_total",
				Help: "Forecast runs by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratecast_run_duration_seconds",
				Help:    "Wall time of forecast runs",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"strategy"},
		),
		runMAE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratecast_run_mae",
				Help: "Mean absolute error of the last successful run",
			},
			[]string{"strategy"},
		),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratecast_runs_in_flight",
			Help: "Forecast runs currently executing",
		}),
		selectionFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratecast_selection_fallbacks_total",
			Help: "Runs where feature selection failed and every column was kept",
		}),
		inputAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratecast_input_anomalies_total",
			Help: "Suspicious observations flagged in input series",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratecast_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"route", "method", "class"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runsTotal, r.runDuration, r.runMAE, r.runsInFlight,
		r.selectionFallbacks, r.inputAnomalies,
		r.httpRequests, r.httpDuration,
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run as executing. The returned func records its end.
func (r *Recorder) RunStarted() func() {
	r.runsInFlight.Inc()
	return r.runsInFlight.Dec
}

// RunFinished records the outcome of one run
func (r *Recorder) RunFinished(strategy, status string, elapsed time.Duration, mae float64) {
	r.runsTotal.WithLabelValues(strategy, status).Inc()
	r.runDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if status == "succeeded" {
		r.runMAE.WithLabelValues(strategy).Set(mae)
	}
}

// SelectionFallback counts a selector failure
func (r *Recorder) SelectionFallback() {
	r.selectionFallbacks.Inc()
}

// InputAnomalies counts flagged input observations
func (r *Recorder) InputAnomalies(n int) {
	r.inputAnomalies.Add(float64(n))
}

// FiberMiddleware records request count and latency labelled with the
// matched route template to keep cardinality low.
func (r *Recorder) FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		method := c.Method()
		r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(time.Since(start).Seconds())
		return err
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
