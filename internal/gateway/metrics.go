package gateway

import "expvar"

var (
	metricInvoicesPaid    = expvar.NewMap("gateway_invoices_paid_total")
	metricInvoicesExpired = expvar.NewMap("gateway_invoices_expired_total")
)
