package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the allocation and billing engine
var (
	TicketsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_tickets_opened_total",
			Help: "Total number of tickets opened, by vehicle type",
		},
		[]string{"vehicle_type"},
	)

	TicketsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_tickets_closed_total",
			Help: "Total number of tickets closed, by exit path",
		},
		[]string{"path"},
	)

	EntryRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_entry_rejected_total",
			Help: "Total number of rejected entry attempts, by reason",
		},
		[]string{"reason"},
	)

	RevenueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parking_revenue_total",
			Help: "Sum of all successful payment amounts",
		},
	)

	StoreConflictRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parking_store_conflict_retries_total",
			Help: "Total number of operations retried after a store conflict",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parking_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(TicketsOpenedTotal)
	prometheus.MustRegister(TicketsClosedTotal)
	prometheus.MustRegister(EntryRejectedTotal)
	prometheus.MustRegister(RevenueTotal)
	prometheus.MustRegister(StoreConflictRetriesTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}
