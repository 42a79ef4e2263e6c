package purchase

import "expvar"

var (
	metricOutcomes           = expvar.NewMap("purchase_outcomes_total")
	metricRejected           = expvar.NewInt("purchase_rejected_total")
	metricCompensationFailed = expvar.NewInt("purchase_compensation_failed_total")
)
