package deposit

import "expvar"

var (
	metricCredited     = expvar.NewInt("deposit_credited_total")
	metricDuplicates   = expvar.NewInt("deposit_duplicate_total")
	metricBelowMinimum = expvar.NewInt("deposit_below_minimum_total")
)
