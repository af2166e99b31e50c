package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for lead capture flows.
type LeadMetrics struct {
	webhookInbound     *prometheus.CounterVec
	webhookDuplicates  prometheus.Counter
	submissions        *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	latency            *prometheus.HistogramVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		webhookInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadforms",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound lead webhooks by outcome",
		}, []string{"status"}),
		webhookDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadforms",
			Subsystem: "webhook",
			Name:      "duplicates_total",
			Help:      "Inbound webhook leads whose email was already received",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadforms",
			Name:      "submission_total",
			Help:      "Form submissions received by outcome",
		}, []string{"status"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadforms",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort tasks that failed, timed out or panicked",
		}, []string{"task"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadforms",
			Name:      "processing_latency_seconds",
			Help:      "Latency of lead processing by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookInbound, m.webhookDuplicates, m.submissions, m.sideEffectFailures, m.latency)
	return m
}

// ObserveWebhook counts an inbound webhook with its outcome (accepted, invalid, insufficient, error).
func (m *LeadMetrics) ObserveWebhook(status string) {
	if m == nil {
		return
	}
	m.webhookInbound.WithLabelValues(status).Inc()
}

func (m *LeadMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.webhookDuplicates.Inc()
}

// ObserveSubmission counts a form submission (ok, rejected, honeypot, too_fast, error).
func (m *LeadMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

func (m *LeadMetrics) ObserveSideEffectFailure(task string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(task).Inc()
}

func (m *LeadMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(operation).Observe(seconds)
}
