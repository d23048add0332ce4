package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// register adds collector to registerer, reusing an identical collector
// that is already registered under the same name.
func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// CheckoutMetrics counts checkout outcomes.
type CheckoutMetrics struct {
	started        prometheus.Counter
	completed      prometheus.Counter
	paymentFailed  prometheus.Counter
	reconciliation prometheus.Counter
	duration       prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout collectors with registerer,
// or with the default registerer when nil.
func NewCheckoutMetrics(registerer prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		started: register(registerer, "storefront_checkout_started_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout submissions started",
		})),
		completed: register(registerer, "storefront_checkout_completed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_completed_total",
			Help: "Total number of checkouts that recorded an order",
		})),
		paymentFailed: register(registerer, "storefront_checkout_payment_failed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_payment_failed_total",
			Help: "Total number of checkouts whose payment was declined",
		})),
		reconciliation: register(registerer, "storefront_checkout_reconciliation_required_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_reconciliation_required_total",
			Help: "Total number of captured payments whose order could not be recorded",
		})),
		duration: register(registerer, "storefront_checkout_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout submissions in seconds",
			Buckets: prometheus.DefBuckets,
		})),
	}
}

// RecordStarted counts a submission.
func (m *CheckoutMetrics) RecordStarted() {
	m.started.Inc()
}

// RecordCompleted counts a completed checkout and its duration.
func (m *CheckoutMetrics) RecordCompleted(d time.Duration) {
	m.completed.Inc()
	m.duration.Observe(d.Seconds())
}

// RecordPaymentFailed counts a declined payment.
func (m *CheckoutMetrics) RecordPaymentFailed() {
	m.paymentFailed.Inc()
}

// RecordReconciliationRequired counts a captured payment without an order.
func (m *CheckoutMetrics) RecordReconciliationRequired() {
	m.reconciliation.Inc()
}

// HTTPMetrics instruments backend requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTPMetrics registers the request collectors.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: register(registerer, "storefront_http_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"})),
		latency: register(registerer, "storefront_http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"})),
	}
}

// Middleware records every request under its chi route pattern.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
