package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReceivedTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gitwatch_webhook_received_total", Help: "deliveries received"}, []string{"event_type"})
	RejectedTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gitwatch_webhook_rejected_total", Help: "deliveries rejected before routing"}, []string{"reason"})
	EventsStored        = prometheus.NewCounter(prometheus.CounterOpts{Name: "gitwatch_events_stored_total", Help: "events persisted"})
	DuplicateDeliveries = prometheus.NewCounter(prometheus.CounterOpts{Name: "gitwatch_duplicate_deliveries_total", Help: "redeliveries dropped by the unique index"})
	StoreFailures       = prometheus.NewCounter(prometheus.CounterOpts{Name: "gitwatch_store_failures_total", Help: "event persistence failures"})
	NotifyFailures      = prometheus.NewCounter(prometheus.CounterOpts{Name: "gitwatch_notify_failures_total", Help: "chat notification failures"})
	ReportsGenerated    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gitwatch_reports_generated_total", Help: "AI reports generated"}, []string{"kind"})
)

func RegisterAll() {
	prometheus.MustRegister(ReceivedTotal, RejectedTotal, EventsStored, DuplicateDeliveries, StoreFailures, NotifyFailures, ReportsGenerated)
}
