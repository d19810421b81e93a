package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ict-admin-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes request latency per route template. Paths listed in skip
// (probes, the scrape endpoint) are not recorded. Requests that match no route
// share one label.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
