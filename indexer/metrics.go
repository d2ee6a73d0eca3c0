package indexer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plasma_indexer"

type Metrics struct {
	transactions       prometheus.Counter
	failedTransactions prometheus.Counter
	events             *prometheus.CounterVec
	decodeErrors       prometheus.Counter
	sequenceGaps       prometheus.Counter
	sinkErrors         prometheus.Counter
	lastSlot           prometheus.Gauge
	reserves           *prometheus.GaugeVec
}

// NewMetrics registers the indexer metrics with r.
func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "number of transactions processed",
		}),
		failedTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_transactions_total",
			Help:      "number of failed transactions skipped",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "number of events applied by kind",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "number of log lines that failed to decode",
		}),
		sequenceGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_gaps_total",
			Help:      "number of pool event sequence gaps",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "number of failed sink writes",
		}),
		lastSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_slot",
			Help:      "slot of the last processed transaction",
		}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserves",
			Help:      "pool reserves in atoms",
		}, []string{"pool", "token"}),
	}
	errs := []error{}
	for _, c := range []prometheus.Collector{
		m.transactions,
		m.failedTransactions,
		m.events,
		m.decodeErrors,
		m.sequenceGaps,
		m.sinkErrors,
		m.lastSlot,
		m.reserves,
	} {
		errs = append(errs, r.Register(c))
	}
	return m, errors.Join(errs...)
}

func (m *Metrics) observePool(state PoolState) {
	pool := state.Pool.String()
	m.reserves.WithLabelValues(pool, "base").Set(float64(state.BaseReserves))
	m.reserves.WithLabelValues(pool, "quote").Set(float64(state.QuoteReserves))
}
