package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"k8s.io/klog/v2"

	"github.com/lhelper/liblibai-client/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

var (
	metricsServer  *http.Server
	tracerProvider *sdktrace.TracerProvider
)

// setupTelemetry starts the metrics server and the tracer provider
// selected by the global flags
func setupTelemetry(_ *cobra.Command, _ []string) error {
	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())

		m, err := metrics.NewHTTPMetrics("liblib", registry)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		srv, err := metrics.StartServer(metricsAddr, registry, "/metrics")
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		apiMetrics = m
		metricsServer = srv
	}

	if traceEnabled {
		tp, err := newTracerProvider(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		otel.SetTracerProvider(tp)
		tracerProvider = tp
	}

	return nil
}

// newTracerProvider exports spans as indented JSON to w
func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "liblib"),
		)),
	), nil
}

// shutdownTelemetry flushes spans and stops the metrics server
func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shut down tracer provider")
		}
		tracerProvider = nil
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shut down metrics server")
		}
		metricsServer = nil
		apiMetrics = nil
	}
	klog.Flush()
}
