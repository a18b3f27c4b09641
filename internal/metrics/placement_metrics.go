package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для метрик.
const (
	ResultPlaced            = "placed"
	ResultCustomerNotFound  = "customer_not_found"
	ResultProductNotFound   = "product_not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultStockConflict     = "stock_conflict"
	ResultError             = "error"
)

// PlacementMetrics содержит метрики операции оформления заказа.
type PlacementMetrics struct {
	// Счётчик исходов по result.
	placements *prometheus.CounterVec

	// Гистограмма времени оформления.
	placementDuration prometheus.Histogram

	// Счётчики сопутствующих событий.
	stockDecrements prometheus.Counter
	timelineEvents  prometheus.Counter
	outboxEvents    prometheus.Counter

	// Gauge для оформлений в полёте.
	activePlacements prometheus.Gauge
}

// NewPlacementMetrics создаёт метрики, зарегистрированные в default registry.
func NewPlacementMetrics() *PlacementMetrics {
	return newPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPlacementMetricsWithRegisterer(registerer prometheus.Registerer) *PlacementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PlacementMetrics{
		placements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_order_placements_total",
			Help: "Total number of order placement attempts grouped by result",
		}, []string{"result"}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "sales_order_placement_duration_seconds",
			Help:    "Duration of order placement operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		stockDecrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_stock_decrements_total",
			Help: "Total number of product stock decrements committed",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "sales_active_placements",
			Help: "Number of order placements currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPlacement увеличивает счётчик исходов оформления.
func (m *PlacementMetrics) RecordPlacement(result string) {
	m.placements.WithLabelValues(result).Inc()
}

// RecordPlacementDuration записывает время оформления заказа.
func (m *PlacementMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordStockDecrements учитывает количество применённых списаний остатков.
func (m *PlacementMetrics) RecordStockDecrements(count int) {
	m.stockDecrements.Add(float64(count))
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *PlacementMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PlacementMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordPlacementStarted увеличивает количество активных оформлений.
func (m *PlacementMetrics) RecordPlacementStarted() {
	m.activePlacements.Inc()
}

// RecordPlacementFinished уменьшает количество активных оформлений.
func (m *PlacementMetrics) RecordPlacementFinished() {
	m.activePlacements.Dec()
}
