package prometheus

import (
	"time"

	"bank-sync-backend/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements metrics.Recorder on Prometheus vectors.
type Collector struct {
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
	accountSyncs    *prometheus.CounterVec
	accountLatency  *prometheus.HistogramVec
	txFetched       prometheus.Counter
	txInserted      prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	return &Collector{
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_calls_total",
				Help:      "Aggregator API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_call_duration_seconds",
				Help:      "Aggregator API call latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"operation"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		accountSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_syncs_total",
				Help:      "Per-account sync attempts by final status",
			},
			[]string{"status"},
		),
		accountLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "account_sync_duration_seconds",
				Help:      "Wall time of one account sync attempt, pauses included",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"status"},
		),
		txFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_fetched_total",
			Help:      "Booked transactions received from the aggregator",
		}),
		txInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_inserted_total",
			Help:      "Transactions newly stored after deduplication",
		}),
	}
}

// Register adds every collector to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.upstreamCalls, c.upstreamLatency, c.circuitState,
		c.accountSyncs, c.accountLatency, c.txFetched, c.txInserted,
	} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) RecordUpstreamCall(operation, outcome string, duration time.Duration) {
	c.upstreamCalls.WithLabelValues(operation, outcome).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordCircuitState(name string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(name).Set(float64(state))
}

func (c *Collector) RecordAccountSync(status string, duration time.Duration) {
	c.accountSyncs.WithLabelValues(status).Inc()
	c.accountLatency.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *Collector) RecordTransactions(fetched, inserted int) {
	c.txFetched.Add(float64(fetched))
	c.txInserted.Add(float64(inserted))
}

var _ metrics.Recorder = (*Collector)(nil)
