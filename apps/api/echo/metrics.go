package echoapi

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/trezcool/skytraining/core"
)

const metricsNamespace = "skytraining"

type metrics struct {
	registry      *prometheus.Registry
	loginAttempts *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "login_attempts_total",
				Help:      "Total number of login attempts by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.loginAttempts,
	)
	return m
}

// middleware records the request count, latency & sizes of the API routes.
func (m *metrics) middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Registerer: m.registry,
		Skipper: func(ctx echo.Context) bool {
			return ctx.Path() == metricsPath
		},
	})
}

func (m *metrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}

func (m *metrics) observeLogin(err error) {
	result := "success"
	if err != nil {
		var domErr *core.Error
		if errors.As(err, &domErr) {
			result = domErr.Code
		} else {
			result = "error"
		}
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}
