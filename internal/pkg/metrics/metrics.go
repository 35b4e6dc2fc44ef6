package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the economy-engine Prometheus collectors.
type Metrics struct {
	settlementsTotal     *prometheus.CounterVec
	verificationsTotal   *prometheus.CounterVec
	checkoutOrdersTotal  *prometheus.CounterVec
	transferEventsTotal  *prometheus.CounterVec
	billEntriesTotal     prometheus.Counter
	settlementDurationMs prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		settlementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "loveline",
				Subsystem: "settlement",
				Name:      "orders_total",
				Help:      "Settlement attempts partitioned by product family and result.",
			},
			[]string{"family", "result"},
		),
		verificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "loveline",
				Subsystem: "settlement",
				Name:      "gateway_verifications_total",
				Help:      "Gateway verification calls partitioned by result.",
			},
			[]string{"result"},
		),
		checkoutOrdersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "loveline",
				Subsystem: "checkout",
				Name:      "orders_total",
				Help:      "Wallet-funded goods orders partitioned by result.",
			},
			[]string{"result"},
		),
		transferEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "loveline",
				Subsystem: "transfer",
				Name:      "events_total",
				Help:      "Peer transfer lifecycle events (sent, claimed, expired).",
			},
			[]string{"event"},
		),
		billEntriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "loveline",
				Subsystem: "ledger",
				Name:      "bill_entries_total",
				Help:      "Total bill entries written to the audit trail.",
			},
		),
		settlementDurationMs: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "loveline",
				Subsystem: "settlement",
				Name:      "complete_duration_ms",
				Help:      "Duration of CompletePayment including gateway verification.",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
	}
}

func (m *Metrics) ObserveSettlement(family, result string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(family, result).Inc()
}

func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.checkoutOrdersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransfer(event string) {
	if m == nil {
		return
	}
	m.transferEventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveBillEntry() {
	if m == nil {
		return
	}
	m.billEntriesTotal.Inc()
}

func (m *Metrics) ObserveSettlementDuration(ms float64) {
	if m == nil {
		return
	}
	m.settlementDurationMs.Observe(ms)
}
