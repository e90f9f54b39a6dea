package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Otel bridges every counter and gauge currently registered on r to meter
// by registering one observable instrument per metric, read via Snapshot
// at each collection. Registering after the metrics it should cover have
// been created is fine since Otel reads the registry by name at export
// time, not at call time; metrics created afterward are not picked up
// until Otel is called again. Call Otel only when the process actually
// has an OTel MeterProvider configured — with no exporter wired, internal
// counters and gauges stay in-process and this method is simply unused.
func (r *Registry) Otel(meter metric.Meter) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.counters)+len(r.gauges)+len(r.dutyCycles))
	for name := range r.counters {
		names = append(names, name)
	}
	for name := range r.gauges {
		names = append(names, name)
	}
	for name := range r.dutyCycles {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		metricName := name
		gauge, err := meter.Float64ObservableGauge("pump." + metricName)
		if err != nil {
			return err
		}
		_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			snap := r.Snapshot()
			if v, ok := snap[metricName]; ok {
				o.ObserveFloat64(gauge, v)
			}
			return nil
		}, gauge)
		if err != nil {
			return err
		}
	}
	return nil
}
