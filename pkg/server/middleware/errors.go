package middleware

import (
	"os"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/openg2p/vci-service/pkg/server/framework"
)

// Errors handles errors coming out of the call stack. Handlers respond to the requester themselves, so this only
// logs the errors they recorded, and signals a shutdown for integrity errors.
func Errors(shutdown chan os.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		errs := c.Errors.ByType(gin.ErrorTypeAny)
		if len(errs) == 0 {
			return
		}

		// check if there's a shutdown-worthy error
		for _, e := range errs {
			if framework.IsShutdown(e.Err) {
				logrus.WithError(e.Err).Error("integrity error, shutting down")
				c.Set(framework.ShutdownErrorKey.String(), e.Err)
				if shutdown != nil {
					shutdown <- syscall.SIGTERM
				}
				return
			}
		}

		traceID := trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		logrus.WithField("trace_id", traceID).Errorf("request errors: %v", errs)
	}
}
