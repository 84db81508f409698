package middleware

import (
	"expvar"
	"runtime"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// m contains global program counters
var m = struct {
	gr  *expvar.Int
	req *expvar.Int
	err *expvar.Int
}{
	gr:  expvar.NewInt("goroutines"),
	req: expvar.NewInt("requests"),
	err: expvar.NewInt("errors"),
}

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vci_http_requests_total",
	Help: "Total number of HTTP requests, by route and status",
}, []string{"method", "route", "status"})

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// increment request counter
		m.req.Add(1)

		// update the counter for the # of active goroutines every 100 requests.
		if m.req.Value()%100 == 0 {
			m.gr.Set(int64(runtime.NumGoroutine()))
		}

		// if an error occurred, increment the errors counter
		if len(c.Errors) > 0 || c.Writer.Status() >= 500 {
			m.err.Add(1)
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
