package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "panel", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "panel", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "panel", Name: "document_operations_total", Help: "Admin document operations by collection, operation and outcome."},
		[]string{"collection", "op", "outcome"},
	)
	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "panel", Name: "http_errors_total", Help: "HTTP error responses by error type."},
		[]string{"type"},
	)
	MeCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "panel", Name: "me_cache_total", Help: "Lookups against the /me cache by result (hit|miss)."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentOperations)
	reg.MustRegister(HTTPErrors)
	reg.MustRegister(MeCache)
}
