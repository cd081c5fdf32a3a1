package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newuzbdev/edunite/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records one observation per request labelled by route pattern, so
// /lessons/:id stays a single series. Health and scrape paths are skipped.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
