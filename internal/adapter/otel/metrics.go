package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "inkwell"

// Metrics holds all service metric instruments.
type Metrics struct {
	Recognitions      metric.Int64Counter
	Reviews           metric.Int64Counter
	Workflows         metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	ProviderErrors    metric.Int64Counter
	StageDuration     metric.Float64Histogram
	RecognitionScores metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Recognitions, err = meter.Int64Counter("inkwell.recognitions",
		metric.WithDescription("Number of recognition calls"))
	if err != nil {
		return nil, err
	}

	m.Reviews, err = meter.Int64Counter("inkwell.reviews",
		metric.WithDescription("Number of review calls"))
	if err != nil {
		return nil, err
	}

	m.Workflows, err = meter.Int64Counter("inkwell.workflows",
		metric.WithDescription("Number of workflow runs"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("inkwell.cache.hits",
		metric.WithDescription("Number of cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("inkwell.cache.misses",
		metric.WithDescription("Number of cache misses"))
	if err != nil {
		return nil, err
	}

	m.ProviderErrors, err = meter.Int64Counter("inkwell.provider.errors",
		metric.WithDescription("Number of failed upstream model calls"))
	if err != nil {
		return nil, err
	}

	m.StageDuration, err = meter.Float64Histogram("inkwell.stage.duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.RecognitionScores, err = meter.Float64Histogram("inkwell.recognition.confidence",
		metric.WithDescription("Adjusted recognition confidence scores"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
