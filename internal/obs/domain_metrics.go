package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TransactionsTotal counts completed POS transactions by tender class and kind (sale/refund).
	TransactionsTotal *prometheus.CounterVec
	// SalesRupiahTotal accumulates gross sale totals in Rupiah.
	SalesRupiahTotal prometheus.Counter
	// CheckoutFailuresTotal counts rejected payment confirmations by error code.
	CheckoutFailuresTotal *prometheus.CounterVec
	// ShiftEventsTotal counts shift lifecycle events (open/close).
	ShiftEventsTotal *prometheus.CounterVec
	// ShiftVarianceRupiah reports the cash variance of the most recently closed shift.
	ShiftVarianceRupiah prometheus.Gauge
	// ReceiptDeliveriesTotal tracks receipt delivery outcomes from the worker.
	ReceiptDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Count of completed POS transactions by tender class and kind.",
		}, []string{"tender", "kind"})
		SalesRupiahTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_rupiah_total",
			Help:      "Accumulated transaction totals in whole Rupiah.",
		})
		CheckoutFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Count of rejected payment confirmations by error code.",
		}, []string{"code"})
		ShiftEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_events_total",
			Help:      "Count of cashier shift lifecycle events.",
		}, []string{"event"})
		ShiftVarianceRupiah = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shift_variance_rupiah",
			Help:      "Cash variance of the most recently closed shift.",
		})
		ReceiptDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_deliveries_total",
			Help:      "Count of receipt delivery outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, TransactionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TransactionsTotal = v
			}
		})
		mustRegisterCollector(reg, SalesRupiahTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SalesRupiahTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutFailuresTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutFailuresTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShiftEventsTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftVarianceRupiah, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ShiftVarianceRupiah = v
			}
		})
		mustRegisterCollector(reg, ReceiptDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReceiptDeliveriesTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
