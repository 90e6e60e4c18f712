package server

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	pipelineKickoffs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pipeline_kickoffs_total",
		Help: "Post-interview pipelines fired by session end.",
	})

	coverageRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_coverage_recomputes_total",
		Help: "Manual coverage recomputes requested over HTTP.",
	})

	docExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_doc_exports_total",
		Help: "Document exports by format.",
	}, []string{"format"})
)

// requestMetrics counts every request by its registered route so path
// parameters don't explode label cardinality.
func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = c.Request().URL.Path
		}
		httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		return err
	}
}
