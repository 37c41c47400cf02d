package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteRequestsTotal counts quote computations by outcome.
	QuoteRequestsTotal *prometheus.CounterVec
	// CouponOutcomesTotal counts coupon resolution outcomes across quotes.
	CouponOutcomesTotal *prometheus.CounterVec
	// QuoteStoreTotal counts quote store operations by operation and result.
	QuoteStoreTotal *prometheus.CounterVec
	// QuoteFinalTotal records the payable amount of computed quotes.
	QuoteFinalTotal prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_requests_total",
			Help:      "Count of quote computations by outcome.",
		}, []string{"result"})
		CouponOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_coupon_outcomes_total",
			Help:      "Count of coupon resolution outcomes.",
		}, []string{"status"})
		QuoteStoreTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_store_total",
			Help:      "Count of quote store operations by outcome.",
		}, []string{"op", "result"})
		QuoteFinalTotal = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_final_total",
			Help:      "Distribution of quoted payable amounts in whole currency units.",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		})

		mustRegisterCollector(reg, QuoteRequestsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteRequestsTotal = v
			}
		})
		mustRegisterCollector(reg, CouponOutcomesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponOutcomesTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteStoreTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteStoreTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteFinalTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteFinalTotal = v
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

// IncQuote records a quote outcome when metrics are registered.
func IncQuote(result string) {
	if QuoteRequestsTotal != nil {
		QuoteRequestsTotal.WithLabelValues(result).Inc()
	}
}

// IncCouponOutcome records a coupon resolution status when metrics are registered.
func IncCouponOutcome(status string) {
	if CouponOutcomesTotal != nil {
		CouponOutcomesTotal.WithLabelValues(status).Inc()
	}
}

// IncQuoteStore records a quote store operation when metrics are registered.
func IncQuoteStore(op, result string) {
	if QuoteStoreTotal != nil {
		QuoteStoreTotal.WithLabelValues(op, result).Inc()
	}
}

// ObserveFinalTotal records a quoted payable amount when metrics are registered.
func ObserveFinalTotal(total int64) {
	if QuoteFinalTotal != nil {
		QuoteFinalTotal.Observe(float64(total))
	}
}
