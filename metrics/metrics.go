// Package metrics exposes the simulator's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the simulation updates.
type Metrics struct {
	OrdersPlaced prometheus.Counter
	OrdersFilled prometheus.Counter
	Fills        prometheus.Counter
	Volume       prometheus.Counter
	TakerOrders  prometheus.Counter
	TickDuration prometheus.Histogram
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hftsim",
			Name:      "orders_placed_total",
			Help:      "Limit orders admitted to the book.",
		}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hftsim",
			Name:      "orders_filled_total",
			Help:      "Orders that reached FILLED.",
		}),
		Fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hftsim",
			Name:      "fills_total",
			Help:      "Individual fill events emitted by the engine.",
		}),
		Volume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hftsim",
			Name:      "volume_total",
			Help:      "Quantity traded across all fills.",
		}),
		TakerOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hftsim",
			Name:      "taker_orders_total",
			Help:      "Market orders injected by the taker flow.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hftsim",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	reg.MustRegister(
		m.OrdersPlaced, m.OrdersFilled, m.Fills,
		m.Volume, m.TakerOrders, m.TickDuration,
	)
	return m
}
