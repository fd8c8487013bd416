package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartSyncMetrics records reconciliation and gateway activity.
type CartSyncMetrics struct {
	reconcilePasses *prometheus.CounterVec
	stockClamps     prometheus.Counter
	rollbacks       prometheus.Counter
	staleDiscards   prometheus.Counter
	gatewayCalls    *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// NewCartSyncMetrics registers the cart sync metrics on the provided registerer.
func NewCartSyncMetrics(reg prometheus.Registerer) *CartSyncMetrics {
	if reg == nil {
		return &CartSyncMetrics{}
	}
	reconcilePasses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconcile_passes_total",
		Help: "Reconciliation passes by result.",
	}, []string{"result"})
	stockClamps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_stock_clamps_total",
		Help: "Quantity clamps applied against known stock.",
	})
	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_quantity_rollbacks_total",
		Help: "Optimistic quantity updates rolled back after transport failure.",
	})
	staleDiscards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_stale_responses_total",
		Help: "Gateway responses discarded because a newer edit superseded them.",
	})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_gateway_requests_total",
		Help: "Remote cart gateway requests by operation and result.",
	}, []string{"op", "result"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_gateway_request_seconds",
		Help:    "Remote cart gateway request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(reconcilePasses, stockClamps, rollbacks, staleDiscards, gatewayCalls, gatewayLatency)
	return &CartSyncMetrics{
		reconcilePasses: reconcilePasses,
		stockClamps:     stockClamps,
		rollbacks:       rollbacks,
		staleDiscards:   staleDiscards,
		gatewayCalls:    gatewayCalls,
		gatewayLatency:  gatewayLatency,
	}
}

// IncReconcile counts a reconciliation pass with the given result label.
func (m *CartSyncMetrics) IncReconcile(result string) {
	if m == nil || m.reconcilePasses == nil {
		return
	}
	m.reconcilePasses.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncStockClamp counts a quantity clamp against known stock.
func (m *CartSyncMetrics) IncStockClamp() {
	if m == nil || m.stockClamps == nil {
		return
	}
	m.stockClamps.Inc()
}

// IncRollback counts a compensating rollback after a failed remote update.
func (m *CartSyncMetrics) IncRollback() {
	if m == nil || m.rollbacks == nil {
		return
	}
	m.rollbacks.Inc()
}

// IncStaleDiscard counts a discarded stale gateway response.
func (m *CartSyncMetrics) IncStaleDiscard() {
	if m == nil || m.staleDiscards == nil {
		return
	}
	m.staleDiscards.Inc()
}

// ObserveGateway records one gateway call.
func (m *CartSyncMetrics) ObserveGateway(op, result string, duration time.Duration) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
	m.gatewayLatency.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
