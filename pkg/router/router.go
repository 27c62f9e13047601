package router

import (
	"context"
	"strings"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/internal/telemetry"
	"github.com/nimbusai/querycore/pkg/complexity"
	"github.com/nimbusai/querycore/pkg/device"
	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/security"
)

// Router fuses cached probes with the complexity analyzer and security
// classifier into routing decisions. Router errors are impossible by
// construction: every path produces a decision, worst case OfflineLocal.
type Router struct {
	capProber   device.Prober
	connProber  device.ConnectivityProber
	analyzer    *complexity.Analyzer
	classifier  *security.Classifier
	clock       clock.Clock
	instruments *telemetry.Instruments
}

// Option configures a Router at construction.
type Option func(*Router)

// WithInstruments attaches the OTel counters/histogram Route records
// queries, decisions, and latency against.
func WithInstruments(inst *telemetry.Instruments) Option {
	return func(r *Router) { r.instruments = inst }
}

// New creates a Router over the given probes, analyzer, and classifier.
// Probes are expected to already be TTL-cached by the caller (see
// pkg/device's CachedProber), per "results are cached by the Router for
// cache_ttl seconds".
func New(capProber device.Prober, connProber device.ConnectivityProber, analyzer *complexity.Analyzer, classifier *security.Classifier, clk clock.Clock, opts ...Option) *Router {
	r := &Router{capProber: capProber, connProber: connProber, analyzer: analyzer, classifier: classifier, clock: clk}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decides execution mode, model size, and fallback chain for query
// under operation, honoring an explicit userPreference when supplied.
func (r *Router) Route(ctx context.Context, query, operation string, userPreference *module.ExecutionMode) Decision {
	start := r.clock.Now()
	r.instruments.RecordQuery(ctx)

	capSnap := r.capProber.Snapshot()
	conn := r.connProber.Snapshot()
	result := r.analyzer.Analyze(query)
	secLevel := r.classifier.Classify(operation, query)

	reasoning := map[string]interface{}{
		"complexity_confidence": result.Confidence,
		"has_gpu":                capSnap.HasGPU,
		"connectivity_available": conn.IsAvailable,
	}

	var mode module.ExecutionMode
	if userPreference != nil {
		mode = *userPreference
		reasoning["source"] = "user_preference"
	} else {
		mode, reasoning["rule"] = decideMode(capSnap, conn, secLevel, result.Complexity)
	}

	size := selectModel(result.Complexity, secLevel, capSnap)
	fallback := buildFallbackChain(mode, conn.IsAvailable)

	tokenCount := estimateTokenCount(query)
	latency := estimateLatencyMS(mode, tokenCount, result.Complexity)
	cost := estimateCost(size, tokenCount)

	r.instruments.RecordRoutingDecision(ctx, string(mode))
	r.instruments.RecordRoutingLatency(ctx, float64(r.clock.Now().Sub(start).Milliseconds()))

	return Decision{
		ExecutionMode:      mode,
		ModelSize:          size,
		Complexity:         result.Complexity,
		SecurityLevel:      secLevel,
		Confidence:         result.Confidence,
		EstimatedLatencyMS: latency,
		EstimatedCost:      cost,
		FallbackChain:      fallback,
		Reasoning:          reasoning,
		Timestamp:          r.clock.Now(),
	}
}

// decideMode applies the seven ordered decision rules; the first matching
// rule wins.
func decideMode(capSnap device.Capability, conn device.ConnectivityStatus, sec module.SecurityLevel, cx module.Complexity) (module.ExecutionMode, string) {
	switch {
	case !conn.IsAvailable:
		return module.OfflineLocal, "offline"
	case capSnap.BatteryPercent != nil && *capSnap.BatteryPercent < 20:
		return module.HybridLocalFirst, "low_battery"
	case capSnap.IsMetered:
		return module.HybridLocalFirst, "metered_connection"
	case sec == module.SecurityCritical && !capSnap.HasGPU:
		return module.CloudOnly, "critical_security_no_gpu"
	case cx == module.Expert && (capSnap.RAMAvailableGB < 26 || !capSnap.HasGPU):
		return module.CloudOnly, "expert_complexity_insufficient_local"
	case cx == module.Expert:
		return module.HybridLocalFirst, "expert_complexity_capable_local"
	default:
		return module.HybridLocalFirst, "default"
	}
}

// selectModel implements _select_model: start from the complexity
// baseline, upgrade for critical-security headroom, downgrade to fit
// available RAM, and prefer CPU-only sizes when there's no GPU to use
// VRAM-requiring sizes.
func selectModel(cx module.Complexity, sec module.SecurityLevel, capSnap device.Capability) module.Size {
	base := modelRequirements[cx]

	if sec == module.SecurityCritical && capSnap.RAMAvailableGB >= module.XL34B.RAMGB {
		base = module.XL34B
	}

	if capSnap.RAMAvailableGB < base.RAMGB {
		base = largestFittingRAM(capSnap.RAMAvailableGB)
	}

	if capSnap.HasGPU && capSnap.VRAMAvailableGB >= base.VRAMGB {
		return base
	}
	if !capSnap.HasGPU && base.VRAMGB > 0 {
		return largestOf(capSnap.RAMAvailableGB, module.Nano1B, module.Small3B, module.Medium7B)
	}
	return base
}

// largestFittingRAM returns the largest defined size whose ram_gb fits
// within availableRAM, or Nano1B if none do.
func largestFittingRAM(availableRAM float64) module.Size {
	best := module.Nano1B
	for _, s := range module.Sizes {
		if s.RAMGB <= availableRAM {
			best = s
		}
	}
	return best
}

// largestOf returns the largest of candidates whose ram_gb fits within
// availableRAM, or the first candidate if none fit.
func largestOf(availableRAM float64, candidates ...module.Size) module.Size {
	best := candidates[0]
	for _, c := range candidates {
		if c.RAMGB <= availableRAM && c.RAMGB >= best.RAMGB {
			best = c
		}
	}
	return best
}

// buildFallbackChain returns a deterministic, decreasing-ambition list of
// alternative execution modes for primary, excluding primary itself.
func buildFallbackChain(primary module.ExecutionMode, online bool) []module.ExecutionMode {
	switch primary {
	case module.CloudOnly:
		if online {
			return []module.ExecutionMode{module.HybridCloudFirst, module.HybridLocalFirst}
		}
		return []module.ExecutionMode{module.OfflineLocal}
	case module.HybridCloudFirst:
		return []module.ExecutionMode{module.HybridLocalFirst, module.OfflineLocal}
	case module.HybridLocalFirst:
		return []module.ExecutionMode{module.OfflineLocal}
	default: // OfflineLocal
		return nil
	}
}

func estimateTokenCount(query string) float64 {
	words := float64(len(strings.Fields(query)))
	return words * 1.3
}

func estimateLatencyMS(mode module.ExecutionMode, tokenCount float64, cx module.Complexity) float64 {
	row := latencyTable[mode]
	baseline, perToken := row[0], row[1]
	return baseline + tokenCount*perToken*(1+0.2*float64(cx-1))
}

func estimateCost(size module.Size, tokenCount float64) float64 {
	rate := costPerModel[size.Label]
	return rate * tokenCount / 1000
}
