package spacetraveling

import (
	"errors"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gustavonogales/spacetraveling/prismic"
)

const metricsNamespace = "spacetraveling"

// metrics holds the collectors of one App. Each App has its own registry so
// several can live in one process.
type metrics struct {
	registry *prometheus.Registry
	// fetches counts content API calls by operation and outcome.
	fetches *prometheus.CounterVec
	// degraded counts responses served from a stale cache entry or the
	// snapshot store.
	degraded *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "content_fetches_total",
				Help:      "Content API calls by operation and result",
			},
			[]string{"op", "result"},
		),
		degraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "degraded_responses_total",
				Help:      "Responses served from stale or snapshot content",
			},
			[]string{"kind"},
		),
	}
}

func (m *metrics) observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, prismic.ErrNotFound):
		result = "not_found"
	case errors.Is(err, prismic.ErrInvalidPreview):
		result = "invalid_preview"
	default:
		result = "error"
	}
	m.fetches.WithLabelValues(op, result).Inc()
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  "http",
		Registerer: m.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	})
}

func (m *metrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: m.registry,
	})
}
