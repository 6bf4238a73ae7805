// Package metrics exposes the Prometheus collectors used by the HTTP layer
// and the order/ledger services. Collectors register with the default
// registry at import time, so callers never see a nil collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order outcomes used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "HTTP requests currently being served",
		},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders placed successfully",
		},
	)

	// OrdersFailedTotal is labelled by error kind (validation, insufficient_stock, ...).
	OrdersFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Order placements rejected or failed, by error kind",
		},
		[]string{"kind"},
	)

	OrderCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_creation_duration_seconds",
			Help:    "Order placement latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	OrdersCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders cancelled, by trigger (api, expiry)",
		},
		[]string{"trigger"},
	)

	InventoryAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_adjustments_total",
			Help: "Inventory ledger adjustments by change type and result",
		},
		[]string{"change_type", "result"},
	)

	PromotionClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_claims_total",
			Help: "Promotion claims and redemptions by result",
		},
		[]string{"result"},
	)

	InventoryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_cache_lookups_total",
			Help: "Inventory snapshot cache lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)
)
