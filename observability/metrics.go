package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records activity on the compensation engine entry points.
type LedgerMetrics struct {
	Registrations *prometheus.CounterVec
	Withdrawals   prometheus.Counter
	Distributions *prometheus.CounterVec
	RPCRequests   *prometheus.CounterVec
	RPCLatency    *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised metrics registry. Collectors are
// registered on the default Prometheus registerer exactly once.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "orphifund",
				Subsystem: "matrix",
				Name:      "registrations_total",
				Help:      "Total successful registrations segmented by package tier.",
			}, []string{"tier"}),
			Withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "orphifund",
				Subsystem: "matrix",
				Name:      "withdrawals_total",
				Help:      "Total successful withdrawals.",
			}),
			Distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "orphifund",
				Subsystem: "matrix",
				Name:      "pool_distributions_total",
				Help:      "Total pool distribution runs segmented by pool.",
			}, []string{"pool"}),
			RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "orphifund",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "orphifund",
				Subsystem: "rpc",
				Name:      "request_seconds",
				Help:      "JSON-RPC request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.Registrations,
			ledgerRegistry.Withdrawals,
			ledgerRegistry.Distributions,
			ledgerRegistry.RPCRequests,
			ledgerRegistry.RPCLatency,
		)
	})
	return ledgerRegistry
}
