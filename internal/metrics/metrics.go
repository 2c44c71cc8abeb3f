package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// Gateway
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	Unauthorized    prometheus.Counter

	// Client state
	OrdersLoaded    prometheus.Gauge
	OrdersSubmitted prometheus.Counter
	SubmitRejected  *prometheus.CounterVec
	JournalAppended prometheus.Counter
	JournalFailed   prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "delivery_api_requests_total"}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_api_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "delivery_api_in_flight_requests"})
	unauthorized := prometheus.NewCounter(prometheus.CounterOpts{Name: "delivery_api_unauthorized_total"})

	ordersLoaded := prometheus.NewGauge(prometheus.GaugeOpts{Name: "delivery_orders_loaded"})
	submitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "delivery_orders_submitted_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "delivery_orders_submit_rejected_total"}, []string{"reason"})
	journalAppended := prometheus.NewCounter(prometheus.CounterOpts{Name: "delivery_journal_appended_total"})
	journalFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "delivery_journal_failed_total"})

	r.MustRegister(requests, duration, inFlight, unauthorized, ordersLoaded, submitted, rejected, journalAppended, journalFailed)
	return &Registry{
		reg:             r,
		Requests:        requests,
		RequestDuration: duration,
		InFlight:        inFlight,
		Unauthorized:    unauthorized,
		OrdersLoaded:    ordersLoaded,
		OrdersSubmitted: submitted,
		SubmitRejected:  rejected,
		JournalAppended: journalAppended,
		JournalFailed:   journalFailed,
	}
}

// InstrumentRoundTripper wraps next with request count, latency and in-flight
// tracking.
func (r *Registry) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(r.InFlight,
		promhttp.InstrumentRoundTripperCounter(r.Requests,
			promhttp.InstrumentRoundTripperDuration(r.RequestDuration, next)))
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
