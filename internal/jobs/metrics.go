package jobs

import "expvar"

var (
	metricRuns     = expvar.NewMap("jobs_runs_total")
	metricFailures = expvar.NewMap("jobs_failures_total")
)
