package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type SaleMetrics struct {
	purchases       *prometheus.CounterVec
	claims          prometheus.Counter
	withdrawals     *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	totalLocked     prometheus.Gauge
	availableSupply prometheus.Gauge
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchases_total",
				Help: "Count of completed purchases by pay asset.",
			}, []string{"asset"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_claims_total",
				Help: "Count of successful claim operations.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_admin_withdrawals_total",
				Help: "Count of admin withdrawals by kind (inventory, proceeds).",
			}, []string{"kind"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_rejected_total",
				Help: "Count of rejected operations by reason.",
			}, []string{"reason"}),
			totalLocked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_total_locked",
				Help: "Aggregate sale-asset currently locked for vesting.",
			}),
			availableSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_available_supply",
				Help: "Unlocked sale-asset inventory held by the vault.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.claims,
			saleRegistry.withdrawals,
			saleRegistry.rejected,
			saleRegistry.totalLocked,
			saleRegistry.availableSupply,
		)
	})
	return saleRegistry
}

func (m *SaleMetrics) ObservePurchase(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.purchases.WithLabelValues(asset).Inc()
}

func (m *SaleMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

func (m *SaleMetrics) ObserveWithdrawal(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.withdrawals.WithLabelValues(kind).Inc()
}

func (m *SaleMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *SaleMetrics) SetTotalLocked(amount float64) {
	if m == nil {
		return
	}
	m.totalLocked.Set(amount)
}

func (m *SaleMetrics) SetAvailableSupply(amount float64) {
	if m == nil {
		return
	}
	m.availableSupply.Set(amount)
}
