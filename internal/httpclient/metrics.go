package httpclient

import "expvar"

var (
	metricRequests    = expvar.NewMap("upstream_requests_total")
	metricFailures    = expvar.NewMap("upstream_failures_total")
	metricRetries     = expvar.NewMap("upstream_retries_total")
	metricCircuitOpen = expvar.NewMap("upstream_circuit_open_total")
)
