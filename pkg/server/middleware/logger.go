package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/openg2p/vci-service/pkg/server/framework"
)

// Logger logs request info before and after a handler runs, in the following format:
//
//	TraceID : started : HTTPMethod Path -> IPAddr
//	TraceID : completed : HTTPMethod Path -> IPAddr (StatusCode) (latency)
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		c.Set(framework.TraceIDKey.String(), traceID)

		entry := logger.WithFields(logrus.Fields{
			"trace_id": traceID,
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"remote":   c.ClientIP(),
		})
		entry.Debug("started")

		c.Next()

		entry.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("completed")
	}
}
