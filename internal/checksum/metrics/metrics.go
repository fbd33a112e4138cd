package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications     *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	BatchSize         prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcheck_checksum_verifications_total",
			Help: "Checksum verifications by kind and result (valid, invalid, malformed)",
		}, []string{"kind", "result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idcheck_checksum_operation_duration_seconds",
			Help:    "Latency of checksum service operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"operation"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcheck_checksum_cache_lookups_total",
			Help: "Verification cache lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idcheck_checksum_batch_size",
			Help:    "Number of numbers per batch verification",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementVerification(kind, result string) {
	m.Verifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCacheLookup(outcome string) {
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBatchSize(n int) {
	m.BatchSize.Observe(float64(n))
}
