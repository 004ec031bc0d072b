package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bookbell/internal/domain/entity"
)

// Prometheus metrics for the dispatch engine.
var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_cycles_total",
			Help: "Total number of completed dispatch cycles",
		},
		[]string{"campaign"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_cycle_duration_seconds",
			Help:    "Duration of one full dispatch cycle",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"campaign"},
	)

	sendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_sends_total",
			Help: "Total notification send attempts",
		},
		[]string{"campaign", "channel", "status"}, // status: success|failure
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Duration of individual sender calls",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"campaign", "channel"},
	)

	suppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_suppressed_total",
			Help: "Candidates suppressed before sending",
		},
		[]string{"campaign", "reason"}, // dedup|expired|opt_out|no_contact|channel_unconfigured
	)

	providerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_provider_failures_total",
			Help: "Booking provider fetch failures",
		},
		[]string{"scope"}, // tenants|events
	)

	persistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_dedup_persist_failures_total",
			Help: "Dedup records that could not be durably persisted",
		},
		[]string{"campaign"},
	)
)

func observeCycle(campaign string, stats *CycleStats) {
	cyclesTotal.WithLabelValues(campaign).Inc()
	cycleDuration.WithLabelValues(campaign).Observe(stats.Duration.Seconds())
}

func recordSend(campaign string, channel entity.Channel, status string, d time.Duration) {
	sendsTotal.WithLabelValues(campaign, string(channel), status).Inc()
	sendDuration.WithLabelValues(campaign, string(channel)).Observe(d.Seconds())
}

func recordSuppressed(campaign, reason string) {
	suppressedTotal.WithLabelValues(campaign, reason).Inc()
}

func recordProviderFailure(scope string) {
	providerFailuresTotal.WithLabelValues(scope).Inc()
}

func recordPersistFailure(campaign string) {
	persistFailuresTotal.WithLabelValues(campaign).Inc()
}
