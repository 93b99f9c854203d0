package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transfer outcome labels
const (
	StatusSuccess      = "success"
	StatusInvalid      = "invalid"
	StatusNotFound     = "not_found"
	StatusInsufficient = "insufficient_funds"
	StatusCompensated  = "compensated"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Transfer metrics
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of transfer attempts",
		},
		[]string{"status"},
	)

	TransferProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_transfer_processing_duration_seconds",
			Help:    "Time to run a transfer through the engine",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	CompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_compensations_total",
			Help: "Total number of debits reversed after a rejected credit",
		},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_notifications_total",
			Help: "Total number of transfer notifications by event type and result",
		},
		[]string{"event", "result"},
	)

	// NATS metrics
	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject"},
	)

	NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject"},
	)

	// Account metrics
	AccountsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_accounts_created_total",
			Help: "Total number of account creation attempts",
		},
		[]string{"result"},
	)

	AccountCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_account_count",
			Help: "Total number of accounts",
		},
	)
)
