package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/packbuild"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram

	// Manifest metrics
	ManifestEntrypoints metric.Int64Gauge
	DroppedAssetsTotal  metric.Int64Counter

	// Renderer metrics
	PagesRenderedTotal metric.Int64Counter
	ManifestReloads    metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"packbuild.builds.total",
		metric.WithDescription("Total number of asset builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"packbuild.builds.errors.total",
		metric.WithDescription("Total number of asset builds that failed"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"packbuild.builds.duration",
		metric.WithDescription("Duration of asset builds including manifest generation"),
		metric.WithUnit("ms"),
	)

	m.ManifestEntrypoints, _ = meter.Int64Gauge(
		"packbuild.manifest.entrypoints",
		metric.WithDescription("Number of entry points in the last written manifest"),
		metric.WithUnit("{entrypoint}"),
	)

	m.DroppedAssetsTotal, _ = meter.Int64Counter(
		"packbuild.manifest.dropped.total",
		metric.WithDescription("Total number of entry point files excluded from the manifest by extension"),
		metric.WithUnit("{file}"),
	)

	m.PagesRenderedTotal, _ = meter.Int64Counter(
		"packbuild.render.pages.total",
		metric.WithDescription("Total number of pages rendered with pack tags"),
		metric.WithUnit("{page}"),
	)

	m.ManifestReloads, _ = meter.Int64Counter(
		"packbuild.render.manifest_reloads.total",
		metric.WithDescription("Total number of manifest reloads by the renderer"),
		metric.WithUnit("{reload}"),
	)

	return m
}
