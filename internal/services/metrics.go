package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookDeliveries counts provider notifications by outcome
	// (applied, duplicate, rejected, failed).
	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_webhook_deliveries_total",
			Help: "Provider webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// paymentTransitions counts payment status changes by target status.
	// Bulk sweeps add the number of rows they moved.
	paymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_payment_transitions_total",
			Help: "Payment status transitions by target status.",
		},
		[]string{"to"},
	)

	// ledgerEntries counts wallet ledger entries by type (credit, debit).
	ledgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_entries_total",
			Help: "Wallet ledger entries by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(webhookDeliveries, paymentTransitions, ledgerEntries)
}
