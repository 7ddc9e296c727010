package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/relaychat/internal/metrics"
)

// Metrics records every request, including streams that are aborted by a
// panic further down the chain.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}
