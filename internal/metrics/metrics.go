// Package metrics wires the japi server's observable counters into
// Prometheus. A nil *Registry is always a valid value: every call site in
// the japi package guards on it being non-nil before touching a
// collector.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every Prometheus collector the japi server exposes.
type Registry struct {
	reg *prometheus.Registry

	ClientsActive          prometheus.Gauge
	RequestsDispatched     prometheus.Counter
	RequestsParseErrors    prometheus.Counter
	RequestsMalformed      prometheus.Counter
	PushDelivered          prometheus.Counter
	PushDropped            prometheus.Counter
	PushSubscribers        *prometheus.GaugeVec
	AcceptRejected         *prometheus.CounterVec
}

// NewRegistry builds a fresh, isolated Prometheus registry (not the global
// default one) so that multiple Contexts in the same process — as in
// tests — never collide on metric names.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		ClientsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "japi_clients_active",
			Help: "Number of clients currently connected to the japi server.",
		}),
		RequestsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "japi_requests_dispatched_total",
			Help: "Total number of requests that reached a handler invocation.",
		}),
		RequestsParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "japi_requests_parse_errors_total",
			Help: "Total number of inbound lines that failed JSON parsing.",
		}),
		RequestsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "japi_requests_malformed_total",
			Help: "Total number of parsed requests missing a japi_request string field.",
		}),
		PushDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "japi_pushsrv_delivered_total",
			Help: "Total number of push messages successfully written to a subscriber.",
		}),
		PushDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "japi_pushsrv_dropped_total",
			Help: "Total number of push fan-out writes that failed and evicted their subscriber.",
		}),
		PushSubscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "japi_pushsrv_subscribers",
			Help: "Current subscriber count per push service.",
		}, []string{"service"}),
		AcceptRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "japi_accept_rejected_total",
			Help: "Total number of accepted TCP connections immediately closed by admission control.",
		}, []string{"reason"}),
	}
}

// Handler exposes the registry over HTTP in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
