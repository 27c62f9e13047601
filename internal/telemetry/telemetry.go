// Package telemetry wires the core's counters, histograms, and gauges into
// OpenTelemetry, lazily initialized once per process and safe to call from
// any goroutine thereafter, per the "process-wide singletons" requirement.
// Spans are exported to stdout. The meter provider is built without a
// reader, so metrics are recorded but not exported, and this package has
// no option for supplying a different trace or metric exporter.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Instruments holds the counters/histograms/gauges recorded by the router,
// loader, and verification engine.
type Instruments struct {
	Queries            metric.Int64Counter
	ModelLoads         metric.Int64Counter
	ModelLoadFailures  metric.Int64Counter
	RoutingDecisions   metric.Int64Counter
	Errors             metric.Int64Counter
	VerificationScore  metric.Float64Histogram
	RoutingLatencyMS   metric.Float64Histogram
	MemoryUsedMB       metric.Float64ObservableGauge
}

var (
	once       sync.Once
	provider   *Provider
	providerMu sync.Mutex
)

// Provider bundles the trace/metric SDK providers and cached instruments.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	Instruments    *Instruments

	memMu       sync.RWMutex
	memoryUsage map[string]float64 // component -> MB, fed by the gauge callback
}

// Init initializes the process-wide telemetry provider exactly once.
// Subsequent calls return the already-initialized provider.
func Init(serviceName string) (*Provider, error) {
	var initErr error
	once.Do(func() {
		provider, initErr = newProvider(serviceName)
	})
	return provider, initErr
}

// Get returns the process-wide provider, initializing it with a default
// service name if Init was never called.
func Get() *Provider {
	providerMu.Lock()
	defer providerMu.Unlock()
	if provider == nil {
		p, err := Init("querycore")
		if err != nil || p == nil {
			return noop()
		}
		return p
	}
	return provider
}

func newProvider(serviceName string) (*Provider, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	meter := mp.Meter("querycore")

	p := &Provider{
		tracerProvider: tp,
		meterProvider:  mp,
		memoryUsage:    make(map[string]float64),
	}

	inst := &Instruments{}
	inst.Queries, _ = meter.Int64Counter("querycore.queries",
		metric.WithDescription("total queries routed"))
	inst.ModelLoads, _ = meter.Int64Counter("querycore.model_loads",
		metric.WithDescription("module load attempts"))
	inst.ModelLoadFailures, _ = meter.Int64Counter("querycore.model_load_failures",
		metric.WithDescription("module load failures"))
	inst.RoutingDecisions, _ = meter.Int64Counter("querycore.routing_decisions",
		metric.WithDescription("routing decisions by execution mode"))
	inst.Errors, _ = meter.Int64Counter("querycore.errors",
		metric.WithDescription("errors by component and kind"))
	inst.VerificationScore, _ = meter.Float64Histogram("querycore.verification_confidence",
		metric.WithDescription("fused verification confidence"))
	inst.RoutingLatencyMS, _ = meter.Float64Histogram("querycore.routing_latency_ms",
		metric.WithDescription("time spent computing a routing decision"))
	inst.MemoryUsedMB, _ = meter.Float64ObservableGauge("querycore.memory_used_mb",
		metric.WithDescription("per-component reserved memory in MB"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			p.memMu.RLock()
			defer p.memMu.RUnlock()
			for component, mb := range p.memoryUsage {
				o.Observe(mb, metric.WithAttributes(attribute.String("component", component)))
			}
			return nil
		}),
	)

	p.Instruments = inst
	return p, nil
}

// SetComponentMemoryMB records the current reservation for a component,
// read by the gauge callback on the next collection.
func (p *Provider) SetComponentMemoryMB(component string, mb float64) {
	p.memMu.Lock()
	defer p.memMu.Unlock()
	p.memoryUsage[component] = mb
}

// RecordQuery increments the total-queries-routed counter. Safe to call on
// a nil *Instruments (e.g. when a component wasn't wired with telemetry).
func (i *Instruments) RecordQuery(ctx context.Context) {
	if i == nil || i.Queries == nil {
		return
	}
	i.Queries.Add(ctx, 1)
}

// RecordRoutingDecision increments the routing-decisions counter, tagged
// with the chosen execution mode.
func (i *Instruments) RecordRoutingDecision(ctx context.Context, mode string) {
	if i == nil || i.RoutingDecisions == nil {
		return
	}
	i.RoutingDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRoutingLatency observes the time spent computing one routing
// decision.
func (i *Instruments) RecordRoutingLatency(ctx context.Context, ms float64) {
	if i == nil || i.RoutingLatencyMS == nil {
		return
	}
	i.RoutingLatencyMS.Record(ctx, ms)
}

// RecordModelLoad increments the model-loads counter, and the
// model-load-failures counter when success is false, both tagged with the
// module name.
func (i *Instruments) RecordModelLoad(ctx context.Context, moduleName string, success bool) {
	if i == nil {
		return
	}
	if i.ModelLoads != nil {
		i.ModelLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("module", moduleName)))
	}
	if !success && i.ModelLoadFailures != nil {
		i.ModelLoadFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("module", moduleName)))
	}
}

// RecordVerificationScore observes a fused verification confidence value.
func (i *Instruments) RecordVerificationScore(ctx context.Context, confidence float64) {
	if i == nil || i.VerificationScore == nil {
		return
	}
	i.VerificationScore.Record(ctx, confidence)
}

// RecordError increments the errors counter, tagged by component and kind.
func (i *Instruments) RecordError(ctx context.Context, component, kind string) {
	if i == nil || i.Errors == nil {
		return
	}
	i.Errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("kind", kind),
	))
}

// Shutdown flushes and tears down the trace/metric providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}

func noop() *Provider {
	return &Provider{Instruments: &Instruments{}, memoryUsage: make(map[string]float64)}
}
