package gateway

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the gateway collectors. Each Server owns a registry so that
// several servers can live in one process.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marquee_gateway_requests_total",
				Help: "Total number of GraphQL HTTP requests by status code.",
			},
			[]string{"code"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marquee_gateway_query_duration_seconds",
				Help:    "Latency of query execution in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.queryDuration)
	return m
}

func (m *metrics) observeStatus(status int) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *metrics) observeQuery(result string, seconds float64) {
	m.queryDuration.WithLabelValues(result).Observe(seconds)
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// queryResult labels the outcome of one execution
func queryResult(resp *Response, invalid bool) string {
	switch {
	case invalid:
		return "invalid"
	case len(resp.Errors) > 0:
		return "field_error"
	default:
		return "ok"
	}
}
