package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count and latency per route.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Timer measures one provider call.
type Timer struct {
	start    time.Time
	metrics  *Metrics
	provider string
	method   string
}

// NewTimer starts a timer. A nil metrics makes Stop a no-op.
func NewTimer(metrics *Metrics, provider, method string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, provider: provider, method: method}
}

// Stop records the call with the given status.
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordProviderCall(t.provider, t.method, status, time.Since(t.start))
}
