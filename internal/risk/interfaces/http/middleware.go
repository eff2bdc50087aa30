package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// MetricsMiddleware 记录 HTTP 请求计数与耗时
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.HTTPRequestsTotal.Inc()
		m.HTTPRequestDuration.Observe(time.Since(start).Seconds())
	}
}
