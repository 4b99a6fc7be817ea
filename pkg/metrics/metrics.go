package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APILatency observes HTTP request latency per method, route, and status.
var APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "website_api_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path", "status"})

// AccessChecks counts authorization gate decisions per action.
var AccessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "website_api_access_checks_total",
	Help: "Authorization decisions grouped by action and outcome.",
}, []string{"action", "outcome"})

// MailDeliveries counts outbound notification emails per audience and outcome.
var MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "website_api_mail_deliveries_total",
	Help: "Notification email attempts grouped by audience and outcome.",
}, []string{"audience", "outcome"})

// ContactMessages counts contact-form submissions by result.
var ContactMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "website_api_contact_messages_total",
	Help: "Contact form submissions grouped by result.",
}, []string{"result"})
