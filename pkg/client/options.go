package client

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lhelper/liblibai-client/pkg/metrics"
)

// DefaultBaseURL is the liblibAI API root.
const DefaultBaseURL = "https://api.liblibai.com/api/v2/"

// Options configures the client behavior.
type Options struct {
	baseURL   string
	timeout   time.Duration
	proxy     string
	transport http.RoundTripper
	metrics   *metrics.HTTPMetrics
	tracing   bool
	rateLimit rate.Limit
	rateBurst int
	userAgent string
}

func defaultOptions() *Options {
	return &Options{
		baseURL:   DefaultBaseURL,
		timeout:   30 * time.Second,
		rateLimit: rate.Inf,
		userAgent: "liblibai-client-go",
	}
}

// Option configures the client.
type Option func(*Options)

// WithBaseURL overrides the API root. Endpoints are resolved relative to
// it, so it should end with a slash.
func WithBaseURL(u string) Option {
	return func(o *Options) {
		o.baseURL = u
	}
}

// WithTimeout sets the per-request timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// WithProxy sets the initial proxy for both HTTP and HTTPS traffic.
// See Client.SetProxy.
func WithProxy(proxy string) Option {
	return func(o *Options) {
		o.proxy = proxy
	}
}

// WithTransport replaces the base round tripper. Proxy settings only apply
// to the built-in transport and are ignored when a custom one is given.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.transport = rt
	}
}

// WithMetrics records request counts and durations in m.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}

// WithTracing creates an OpenTelemetry client span for every request using
// the global tracer provider.
func WithTracing() Option {
	return func(o *Options) {
		o.tracing = true
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. Requests wait for a token; a cancelled context aborts the wait.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Options) {
		o.rateLimit = rate.Limit(rps)
		o.rateBurst = burst
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Options) {
		o.userAgent = ua
	}
}
