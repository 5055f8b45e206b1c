package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/opensource-finance/heron"

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	assessments   metric.Int64Counter
	duration      metric.Float64Histogram
	creditQueries metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	assessments, err := meter.Int64Counter("heron_assessments_total",
		metric.WithDescription("Assessments by outcome and risk level"))
	if err != nil {
		return nil, fmt.Errorf("failed to create assessments counter: %w", err)
	}

	duration, err := meter.Float64Histogram("heron_assessment_duration_ms",
		metric.WithDescription("End-to-end assessment latency in milliseconds"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	creditQueries, err := meter.Int64Counter("heron_credit_queries_total",
		metric.WithDescription("Credit bureau queries by provider"))
	if err != nil {
		return nil, fmt.Errorf("failed to create credit queries counter: %w", err)
	}

	return &Metrics{
		assessments:   assessments,
		duration:      duration,
		creditQueries: creditQueries,
	}, nil
}

// RecordAssessment counts one assessment. level is empty for failed assessments.
func (m *Metrics) RecordAssessment(ctx context.Context, status string, level domain.RiskLevel, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("risk_level", string(level)),
	)
	m.assessments.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attribute.String("status", status)))
}

// RecordCreditQuery counts one credit bureau lookup.
func (m *Metrics) RecordCreditQuery(ctx context.Context, provider string, mock bool) {
	if m == nil {
		return
	}
	m.creditQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("mock", strconv.FormatBool(mock)),
	))
}

// MetricsProvider bundles the meter provider with its scrape handler.
type MetricsProvider struct {
	Metrics  *Metrics
	Handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// Shutdown flushes and stops the meter provider.
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// InitMetrics initializes the Prometheus exporter on a private registry and
// returns the instruments and the /metrics handler.
func InitMetrics() (*MetricsProvider, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
		promexporter.WithoutUnits(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	metrics, err := NewMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}

	return &MetricsProvider{
		Metrics:  metrics,
		Handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		provider: provider,
	}, nil
}
