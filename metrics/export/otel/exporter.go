// Package otel bridges engine metrics into OpenTelemetry instruments.
// Counters and histogram buckets are registered as observables so the
// engine's lock-free counters stay the single source of truth and the
// bridge reads them only when the OTel reader collects.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	authgate "github.com/halyard-io/authgate"
	"github.com/halyard-io/authgate/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

// OTelExporter registers engine metrics on an OpenTelemetry meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
}

// NewOTelExporter wires the engine's metrics into the given meter. The
// returned exporter must be unregistered via Shutdown before the engine
// closes.
func NewOTelExporter(engine *authgate.Engine, meter metric.Meter) (*OTelExporter, error) {
	return newExporter(engine, meter)
}

// NewOTelExporterFromSource is NewOTelExporter for a custom source.
func NewOTelExporterFromSource(source metricsSource, meter metric.Meter) (*OTelExporter, error) {
	return newExporter(source, meter)
}

func newExporter(source metricsSource, meter metric.Meter) (*OTelExporter, error) {
	if source == nil {
		return nil, fmt.Errorf("otel exporter: nil source")
	}
	if meter == nil {
		return nil, fmt.Errorf("otel exporter: nil meter")
	}

	counters := make(map[authgate.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs))
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel exporter: register %s: %w", def.Name, err)
		}
		counters[def.ID] = counter
		observables = append(observables, counter)
	}

	histograms := make(map[authgate.MetricID]metric.Int64ObservableCounter, len(internaldefs.HistogramDefs))
	for _, def := range internaldefs.HistogramDefs {
		// Bucketed counts are published as one counter with a le attribute,
		// cumulative like a Prometheus histogram.
		counter, err := meter.Int64ObservableCounter(def.Name+"_bucket", metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel exporter: register %s: %w", def.Name, err)
		}
		histograms[def.ID] = counter
		observables = append(observables, counter)
	}

	dropped, err := meter.Int64ObservableCounter(
		"authgate_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: register audit dropped: %w", err)
	}
	observables = append(observables, dropped)

	exp := &OTelExporter{source: source}

	registration, err := meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		snapshot := exp.source.MetricsSnapshot()

		for _, def := range internaldefs.CounterDefs {
			obs.ObserveInt64(counters[def.ID], int64(snapshot.Counters[def.ID]))
		}

		for _, def := range internaldefs.HistogramDefs {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
			for i, v := range cumulative {
				obs.ObserveInt64(histograms[def.ID], int64(v),
					metric.WithAttributes(attribute.String("le", internaldefs.HistogramBounds[i])))
			}
		}

		obs.ObserveInt64(dropped, int64(exp.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: register callback: %w", err)
	}

	exp.registration = registration
	return exp, nil
}

// Shutdown unregisters the collection callback.
func (e *OTelExporter) Shutdown() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
