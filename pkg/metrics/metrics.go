// Package metrics instruments the outbound API transport with Prometheus
// metrics and serves them over HTTP.
package metrics

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// HTTPMetrics are the counters and histograms recorded for API calls.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// NewHTTPMetrics creates the API metrics under the given namespace and
// registers them with registry.
func NewHTTPMetrics(prefix string, registry prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: prefix,
				Name:      "api_requests_total",
				Help:      "Total number of liblibAI API requests, categorized by method and status code.",
			},
			[]string{"method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: prefix,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of liblibAI API requests in seconds, categorized by method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: prefix,
				Name:      "api_requests_in_flight",
				Help:      "Number of liblibAI API requests currently in flight.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.RequestsTotal, m.RequestDuration, m.InFlight} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	klog.V(2).InfoS("API metrics initialized", "prefix", prefix)
	return m, nil
}

// InstrumentRoundTripper wraps next so every request is counted and timed.
func (m *HTTPMetrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(m.InFlight,
		promhttp.InstrumentRoundTripperCounter(m.RequestsTotal,
			promhttp.InstrumentRoundTripperDuration(m.RequestDuration, next),
		),
	)
}

// StartServer serves the metrics of registry on addr under path. The
// server runs until closed by the caller.
func StartServer(addr string, registry prometheus.Gatherer, path string) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	srv := &http.Server{
		Handler: mux,
		Addr:    listener.Addr().String(),
	}

	go func() {
		klog.InfoS("Starting Prometheus metrics server", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Metrics server stopped")
		}
	}()

	return srv, nil
}
