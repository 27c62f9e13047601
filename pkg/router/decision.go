// Package router implements the Smart Router: it fuses device/connectivity
// probes, the complexity analyzer, and the security classifier into an
// immutable RoutingDecision, generalizing the teacher framework's
// WorkflowRouter decision-fusion pattern (probe, decide, record reasoning)
// from HTTP-capability routing to execution-mode routing.
package router

import (
	"time"

	"github.com/nimbusai/querycore/pkg/module"
)

// Decision is the immutable result of routing a single query, per the
// core specification's RoutingDecision record.
type Decision struct {
	ExecutionMode      module.ExecutionMode
	ModelSize          module.Size
	Complexity         module.Complexity
	SecurityLevel      module.SecurityLevel
	Confidence         float64
	EstimatedLatencyMS float64
	EstimatedCost      float64
	FallbackChain      []module.ExecutionMode
	Reasoning          map[string]interface{}
	Timestamp          time.Time
}

// modelRequirements maps each complexity tier to its baseline model size,
// per the contract (Trivial -> Nano1B ... Expert -> XL34B).
var modelRequirements = map[module.Complexity]module.Size{
	module.Trivial:  module.Nano1B,
	module.Simple:   module.Small3B,
	module.Moderate: module.Medium7B,
	module.Complex:  module.Large13B,
	module.Expert:   module.XL34B,
}

// latencyTable holds baseline_ms and per_token_ms for each execution mode,
// part of the latency-estimate contract.
var latencyTable = map[module.ExecutionMode][2]float64{
	module.OfflineLocal:     {15, 0.5},
	module.HybridLocalFirst: {25, 0.8},
	module.HybridCloudFirst: {80, 1.5},
	module.CloudOnly:        {120, 2.0},
}

// costPerModel is the cost-rate table for the cost estimate, keyed by
// model size label. Values are illustrative per-1000-token rates; this
// core defines the table since the distilled contract names it without
// literal figures.
var costPerModel = map[string]float64{
	module.Nano1B.Label:    0.0001,
	module.Small3B.Label:   0.0003,
	module.Medium7B.Label:  0.0008,
	module.Large13B.Label:  0.0020,
	module.XL34B.Label:     0.0050,
	module.Ultra200B.Label: 0.0150,
}
