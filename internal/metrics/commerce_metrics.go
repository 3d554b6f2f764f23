package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics содержит метрики ядра транзакций: checkout, платежи,
// возвраты и складские резервы.
type CommerceMetrics struct {
	// Счётчики checkout
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    prometheus.Counter

	// Гистограмма времени checkout
	checkoutDuration prometheus.Histogram

	// Платежи и возвраты
	paymentResolutions *prometheus.CounterVec
	refundsCompleted   prometheus.Counter
	refundsFailed      prometheus.Counter

	// Складские операции
	stockOps *prometheus.CounterVec

	// События
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewCommerceMetrics создаёт метрики ядра в default registerer.
func NewCommerceMetrics() *CommerceMetrics {
	return newCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_started_total",
			Help: "Total number of checkout operations started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_completed_total",
			Help: "Total number of checkout operations completed successfully",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_failed_total",
			Help: "Total number of checkout operations failed",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		paymentResolutions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_resolutions_total",
			Help: "Total number of asynchronous payment resolutions grouped by outcome",
		}, []string{"outcome"}),
		refundsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_refunds_completed_total",
			Help: "Total number of refunds processed successfully",
		}),
		refundsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_refunds_failed_total",
			Help: "Total number of refunds rejected by the gateway",
		}),
		stockOps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_stock_operations_total",
			Help: "Total number of stock ledger operations grouped by op and result",
		}, []string{"op", "result"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

// RecordCheckoutStarted увеличивает счётчик начатых checkout.
func (m *CommerceMetrics) RecordCheckoutStarted() {
	if m != nil {
		m.checkoutStarted.Inc()
	}
}

// RecordCheckoutCompleted увеличивает счётчик успешных checkout.
func (m *CommerceMetrics) RecordCheckoutCompleted() {
	if m != nil {
		m.checkoutCompleted.Inc()
	}
}

// RecordCheckoutFailed увеличивает счётчик неудачных checkout.
func (m *CommerceMetrics) RecordCheckoutFailed() {
	if m != nil {
		m.checkoutFailed.Inc()
	}
}

// RecordCheckoutDuration пишет длительность checkout в гистограмму.
func (m *CommerceMetrics) RecordCheckoutDuration(d time.Duration) {
	if m != nil {
		m.checkoutDuration.Observe(d.Seconds())
	}
}

// RecordPaymentResolution считает исход асинхронного разрешения платежа.
func (m *CommerceMetrics) RecordPaymentResolution(outcome string) {
	if m != nil {
		m.paymentResolutions.WithLabelValues(outcome).Inc()
	}
}

// RecordRefundCompleted увеличивает счётчик успешных возвратов.
func (m *CommerceMetrics) RecordRefundCompleted() {
	if m != nil {
		m.refundsCompleted.Inc()
	}
}

// RecordRefundFailed увеличивает счётчик отклонённых возвратов.
func (m *CommerceMetrics) RecordRefundFailed() {
	if m != nil {
		m.refundsFailed.Inc()
	}
}

// RecordStockOp считает операцию складского леджера.
func (m *CommerceMetrics) RecordStockOp(op, result string) {
	if m != nil {
		m.stockOps.WithLabelValues(op, result).Inc()
	}
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CommerceMetrics) RecordTimelineEvent() {
	if m != nil {
		m.timelineEvents.Inc()
	}
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CommerceMetrics) RecordOutboxEvent() {
	if m != nil {
		m.outboxEvents.Inc()
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
