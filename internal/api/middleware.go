package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type middleware struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	logger         *zap.Logger
}

func newMiddleware(reg prometheus.Registerer, logger *zap.Logger) *middleware {
	m := &middleware{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amm_http_requests_total",
				Help: "Total number of requests.",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amm_http_request_duration_seconds",
				Help:    "Histogram of request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		logger: logger,
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency)
	return m
}

// Instrument counts requests and observes their latency by route pattern.
func (m *middleware) Instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		method := c.Request().Method
		path := c.Path()
		status := c.Response().Status
		m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.requestLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.logger.Debug("http request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}
}
