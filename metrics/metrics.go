package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourneyzone_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_ledger_transactions_total",
			Help: "Ledger transactions recorded, by direction and status",
		},
		[]string{"direction", "status"},
	)

	LedgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_ledger_amount_paise_total",
			Help: "Sum of amounts applied to balances, in paise",
		},
		[]string{"direction"},
	)

	LedgerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_ledger_rejections_total",
			Help: "Ledger operations rejected, by reason",
		},
		[]string{"reason"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_settlements_total",
			Help: "Prize pool settlement attempts by outcome",
		},
		[]string{"outcome"},
	)

	BulkDepositEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_bulk_deposit_entries_total",
			Help: "Bulk UTR reconciliation entries by result",
		},
		[]string{"status"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourneyzone_emails_total",
			Help: "Emails queued, sent or failed",
		},
		[]string{"status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourneyzone_email_queue_length",
			Help: "Current length of the email queue",
		},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourneyzone_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordLedgerTransaction counts a ledger row. Amount is only added when the row
// changed a balance.
func RecordLedgerTransaction(direction, status string, applied bool, amount int64) {
	LedgerTransactionsTotal.WithLabelValues(direction, status).Inc()
	if applied {
		LedgerAmountTotal.WithLabelValues(direction).Add(float64(amount))
	}
}

func RecordLedgerRejection(reason string) {
	LedgerErrorsTotal.WithLabelValues(reason).Inc()
}

func RecordSettlement(outcome string) {
	SettlementsTotal.WithLabelValues(outcome).Inc()
}

func RecordBulkDepositEntry(status string) {
	BulkDepositEntriesTotal.WithLabelValues(status).Inc()
}

func RecordEmail(status string) {
	EmailsTotal.WithLabelValues(status).Inc()
}
