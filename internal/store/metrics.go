package store

import "expvar"

var (
	metricFlushWrites = expvar.NewInt("ledger_flush_writes_total")
	metricFlushErrors = expvar.NewInt("ledger_flush_errors_total")
)
