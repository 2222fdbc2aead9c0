package metrics

import (
	"context"

	"github.com/Spok95/salon-ledger/internal/domain/materials"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Name:      "stock_adjustments_total",
		Help:      "Stock changes applied through the ledger, by transaction type.",
	}, []string{"type"})

	ClientServices = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salon",
		Name:      "client_services_total",
		Help:      "Client services completed with material deduction.",
	})

	LowStockAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Name:      "low_stock_alerts_total",
		Help:      "Materials that dropped to or below their minimum level.",
	}, []string{"category"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Name:      "http_requests_total",
		Help:      "HTTP API requests by route pattern and status code.",
	}, []string{"route", "code"})
)

// LowStockWatcher считает алерты о низком остатке.
type LowStockWatcher struct{}

func (LowStockWatcher) StockLow(_ context.Context, m materials.Material) {
	category := string(m.Category)
	if category == "" {
		category = "none"
	}
	LowStockAlerts.WithLabelValues(category).Inc()
}
