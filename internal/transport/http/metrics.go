package httptransport

import "expvar"

var (
	metricErrors       = expvar.NewMap("http_errors_total")
	metricAuthFailures = expvar.NewMap("http_auth_failures_total")
	metricPurchases    = expvar.NewMap("http_purchase_requests_total")
)
