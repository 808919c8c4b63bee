package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rshade/lcamatch/internal/logging"
)

// TraceHeader carries the trace id of a request in both directions.
const TraceHeader = "X-Trace-Id"

// requestLogger attaches a trace id and the logger to the request context
// and logs every completed request.
func requestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		c.Header(TraceHeader, traceID)

		ctx := logging.ContextWithTraceID(c.Request.Context(), traceID)
		ctx = base.WithContext(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		ev := logging.FromContext(ctx).Info()
		if status >= 500 {
			ev = logging.FromContext(ctx).Warn()
		}
		ev.Ctx(ctx).
			Str("component", "httpapi").
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("request handled")
	}
}
