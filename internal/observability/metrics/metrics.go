package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the availability and
// booking flows. A nil receiver is a no-op so wiring stays optional in
// tests and workers.
type SchedulingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	rulesSkippedTotal   prometheus.Counter
	availabilityLatency prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samasante",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		rulesSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "samasante",
			Subsystem: "scheduling",
			Name:      "rules_skipped_total",
			Help:      "Total availability rules skipped as malformed",
		}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "samasante",
			Subsystem: "scheduling",
			Name:      "availability_compute_seconds",
			Help:      "Latency of daily slot computation",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.rulesSkippedTotal, m.availabilityLatency)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveRuleSkipped() {
	if m == nil {
		return
	}
	m.rulesSkippedTotal.Inc()
}

func (m *SchedulingMetrics) ObserveAvailabilityLatency(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
