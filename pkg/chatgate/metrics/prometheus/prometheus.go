package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Metrics implements chatgate.Metrics using Prometheus.
type Metrics struct {
	routingTotal         *prometheus.CounterVec
	routingDuration      *prometheus.HistogramVec
	quotaDenialsTotal    *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	providerCallErrors   *prometheus.CounterVec
	snapshotDuration     prometheus.Histogram
	snapshotUsers        prometheus.Gauge
	snapshotErrors       prometheus.Counter
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		routingTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_total",
			Help:      "Total number of routed messages by outcome.",
		}, []string{"provider", "outcome"}),

		routingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_duration_seconds",
			Help:      "End-to-end latency of message routing.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		quotaDenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Total number of denials issued by the usage ledger.",
		}, []string{"provider"}),

		providerCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of external provider calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "success"}),

		providerCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_call_errors_total",
			Help:      "Total number of failed provider calls.",
		}, []string{"provider"}),

		snapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Latency of durable snapshot writes.",
			Buckets:   prometheus.DefBuckets,
		}),

		snapshotUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_users",
			Help:      "Number of user records in the last snapshot.",
		}),

		snapshotErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Total number of failed snapshot writes.",
		}),
	}
}

func (m *Metrics) RecordRouting(provider chatgate.ProviderID, outcome chatgate.Outcome, duration time.Duration) {
	p := string(provider)
	if p == "" {
		p = "none"
	}
	m.routingTotal.WithLabelValues(p, string(outcome)).Inc()
	m.routingDuration.WithLabelValues(p).Observe(duration.Seconds())
}

func (m *Metrics) RecordQuotaDenial(provider chatgate.ProviderID) {
	m.quotaDenialsTotal.WithLabelValues(string(provider)).Inc()
}

func (m *Metrics) RecordProviderCall(provider chatgate.ProviderID, duration time.Duration, err error) {
	success := strconv.FormatBool(err == nil)
	m.providerCallDuration.WithLabelValues(string(provider), success).Observe(duration.Seconds())
	if err != nil {
		m.providerCallErrors.WithLabelValues(string(provider)).Inc()
	}
}

func (m *Metrics) RecordSnapshot(users int, duration time.Duration, err error) {
	m.snapshotDuration.Observe(duration.Seconds())
	m.snapshotUsers.Set(float64(users))
	if err != nil {
		m.snapshotErrors.Inc()
	}
}
