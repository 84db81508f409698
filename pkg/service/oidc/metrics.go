package oidc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	credentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vci_credentials_issued_total",
		Help: "Total number of credentials issued, by issuer and format",
	}, []string{"issuer", "format"})
	credentialsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vci_credential_failures_total",
		Help: "Total number of failed credential requests, by error code",
	}, []string{"code"})
	issuanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vci_credential_issuance_duration_seconds",
		Help:    "Duration of credential issuance, including token and proof validation",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
)

func recordIssued(issuerName, format string, start time.Time) {
	credentialsIssued.WithLabelValues(issuerName, format).Inc()
	issuanceDuration.Observe(time.Since(start).Seconds())
}

func recordFailure(err error) {
	code := CodeOf(err)
	if code == "" {
		code = "internal"
	}
	credentialsFailed.WithLabelValues(code).Inc()
}
