package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	PollsTotal     prometheus.Counter
	CallsDetected  prometheus.Counter
	Notifications  prometheus.Counter
	HistoryPages   prometheus.Counter
	CrawlDuration  prometheus.Histogram
	TicketsCreated prometheus.Counter
	ErrorsCount    *prometheus.CounterVec
	LoggedIn       prometheus.Gauge
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "The total number of live page polls",
		}),
		CallsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_detected_total",
			Help:      "The total number of calls extracted from the portal",
		}),
		Notifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_call_notifications_total",
			Help:      "The total number of new-call notifications surfaced",
		}),
		HistoryPages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_pages_fetched_total",
			Help:      "The total number of history pages fetched by bulk crawls",
		}),
		CrawlDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Time taken by a full history crawl",
			Buckets:   prometheus.DefBuckets,
		}),
		TicketsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "The total number of tickets submitted to the portal",
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
		LoggedIn: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portal_logged_in",
			Help:      "Whether the portal session is currently authenticated",
		}),
	}
}
