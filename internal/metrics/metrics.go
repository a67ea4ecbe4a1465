package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters the transaction core emits. A fresh registry
// per instance keeps tests from tripping duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	SalesTotal        prometheus.Counter
	SaleFailures      *prometheus.CounterVec
	RefundsTotal      prometheus.Counter
	SaleAmountCents   prometheus.Counter
	RefundAmountCents prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SalesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Completed sale transactions",
		}),
		SaleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sale_failures_total",
			Help: "Rejected sale attempts by reason",
		}, []string{"reason"}),
		RefundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_refunds_total",
			Help: "Processed refunds",
		}),
		SaleAmountCents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_amount_cents_total",
			Help: "Gross sale value in cents",
		}),
		RefundAmountCents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_refund_amount_cents_total",
			Help: "Refunded value in cents",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.registry.MustRegister(
		m.SalesTotal,
		m.SaleFailures,
		m.RefundsTotal,
		m.SaleAmountCents,
		m.RefundAmountCents,
		m.RequestDuration,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method string, path string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
