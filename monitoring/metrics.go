package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remindersDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_delivered_total",
			Help: "Reminder delivery attempts by source and result",
		},
		[]string{"source", "result"},
	)

	ticketValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_validations_total",
			Help: "Ticket scans by outcome code",
		},
		[]string{"result"},
	)

	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued by purchase kind",
		},
		[]string{"kind"},
	)

	paymentsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Payments moved out of PENDING by final status",
		},
		[]string{"status"},
	)

	jobsForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduled_jobs_forwarded_total",
			Help: "Delayed jobs moved onto the command bus",
		},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func TrackReminderDelivery(source, result string) {
	remindersDelivered.WithLabelValues(source, result).Inc()
}

func TrackValidation(result string) {
	ticketValidations.WithLabelValues(result).Inc()
}

func TrackTicketsIssued(kind string, n int) {
	ticketsIssued.WithLabelValues(kind).Add(float64(n))
}

func TrackPaymentCompleted(status string) {
	paymentsCompleted.WithLabelValues(status).Inc()
}

func TrackJobForwarded() {
	jobsForwarded.Inc()
}

func TrackGatewayCall(operation string, started time.Time) {
	gatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
