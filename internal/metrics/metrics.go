// Package metrics exposes the outbox/worker subsystem's Prometheus
// collectors: claim throughput, delivery outcomes, and claim age, scraped
// from an ops-only HTTP endpoint separate from any public API surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this package registers. It is a dedicated
// registry rather than the global prometheus.DefaultRegisterer, so these
// collectors never collide with anything registered on the default one.
var Registry = prometheus.NewRegistry()

var (
	deliveriesClaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osa",
			Subsystem: "outbox",
			Name:      "deliveries_claimed_total",
			Help:      "Total deliveries claimed per consumer group.",
		},
		[]string{"consumer_group"},
	)

	deliveriesSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osa",
			Subsystem: "outbox",
			Name:      "deliveries_settled_total",
			Help:      "Total deliveries settled per consumer group and outcome.",
		},
		[]string{"consumer_group", "outcome"},
	)

	deliveriesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osa",
			Subsystem: "outbox",
			Name:      "deliveries_failed_total",
			Help:      "Total deliveries that ended in a failed status, including retries exhausted.",
		},
		[]string{"consumer_group"},
	)

	claimAge = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "osa",
			Subsystem: "outbox",
			Name:      "delivery_claim_age_seconds",
			Help:      "Age of a delivery (time since its event was appended) at the moment it was claimed.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~14min
		},
		[]string{"consumer_group"},
	)

	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "osa",
			Subsystem: "worker",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one Worker.pollOnce cycle, including idle polls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"consumer_group"},
	)

	workerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "osa",
			Subsystem: "worker",
			Name:      "status",
			Help:      "Current Worker status as a gauge: 1 for the active status label, 0 otherwise.",
		},
		[]string{"consumer_group", "status"},
	)

	janitorReclaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osa",
			Subsystem: "outbox",
			Name:      "janitor_reclaimed_total",
			Help:      "Total stale claims reset to pending by the janitor.",
		},
		[]string{"consumer_group"},
	)
)

func init() {
	Registry.MustRegister(
		deliveriesClaimed,
		deliveriesSettled,
		deliveriesFailed,
		claimAge,
		pollDuration,
		workerStatus,
		janitorReclaimed,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors, meant
// to be served on an ops-only address distinct from any public listener.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordClaim records a successful claim of n deliveries for consumerGroup,
// along with the oldest delivery's age at claim time.
func RecordClaim(consumerGroup string, n int, oldestAge time.Duration) {
	if n <= 0 {
		return
	}
	deliveriesClaimed.WithLabelValues(consumerGroup).Add(float64(n))
	claimAge.WithLabelValues(consumerGroup).Observe(oldestAge.Seconds())
}

// RecordSettlement records one delivery reaching a terminal status.
func RecordSettlement(consumerGroup, outcome string) {
	deliveriesSettled.WithLabelValues(consumerGroup, outcome).Inc()
	if outcome == "failed" {
		deliveriesFailed.WithLabelValues(consumerGroup).Inc()
	}
}

// RecordPoll records the wall-clock duration of one pollOnce cycle.
func RecordPoll(consumerGroup string, d time.Duration) {
	pollDuration.WithLabelValues(consumerGroup).Observe(d.Seconds())
}

// SetWorkerStatus reports status as the active gauge value (1) for
// consumerGroup, clearing every other known status label to 0.
func SetWorkerStatus(consumerGroup, status string, allStatuses []string) {
	for _, s := range allStatuses {
		if s == status {
			workerStatus.WithLabelValues(consumerGroup, s).Set(1)
		} else {
			workerStatus.WithLabelValues(consumerGroup, s).Set(0)
		}
	}
}

// RecordJanitorReclaim records n stale claims reset to pending for
// consumerGroup by the janitor sweep.
func RecordJanitorReclaim(consumerGroup string, n int) {
	if n <= 0 {
		return
	}
	janitorReclaimed.WithLabelValues(consumerGroup).Add(float64(n))
}
