package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"route", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "method"},
)

var HttpRateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

// DispatchesTotal counts dispatch invocations by outcome: completed,
// not_found, forbidden, invalid_state, conflict or error.
var DispatchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "campaign_dispatches_total",
		Help: "Total number of campaign dispatch invocations",
	},
	[]string{"outcome"},
)

// RecipientSendsTotal counts per recipient results: sent, bounced or error
// (the send row could not be created).
var RecipientSendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "campaign_recipient_sends_total",
		Help: "Total number of per recipient campaign sends",
	},
	[]string{"result"},
)

var DispatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "campaign_dispatch_duration_seconds",
		Help:    "Time taken to dispatch a campaign to all recipients",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	},
)

var TrackingClicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tracking_clicks_total",
		Help: "Total number of tracking link visits",
	},
	[]string{"result"},
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			HttpRateLimitRejectionsTotal,
			DispatchesTotal,
			RecipientSendsTotal,
			DispatchDuration,
			TrackingClicksTotal,
		)
	})
}
