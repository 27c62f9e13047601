// Package module defines the shared types of the module catalog: the
// declarative ModuleSpec, the mutable LoadedModule state machine, and the
// model-size/complexity/security enums the rest of the core reasons about.
package module

import "time"

// Type is the capability category of a module.
type Type string

// Module types, per the core specification's ModuleSpec.module_type set.
const (
	TypeCore      Type = "core"
	TypeVision    Type = "vision"
	TypeCode      Type = "code"
	TypeReasoning Type = "reasoning"
	TypeAudio     Type = "audio"
	TypeTools     Type = "tools"
	TypeEmbedding Type = "embedding"
	TypeSecurity  Type = "security"
)

// Complexity is the ordered query-complexity tier.
type Complexity int

// Complexity tiers, ordered Trivial < Simple < Moderate < Complex < Expert.
const (
	Trivial Complexity = iota + 1
	Simple
	Moderate
	Complex
	Expert
)

// String renders the tier name for logs and audit trails.
func (c Complexity) String() string {
	switch c {
	case Trivial:
		return "trivial"
	case Simple:
		return "simple"
	case Moderate:
		return "moderate"
	case Complex:
		return "complex"
	case Expert:
		return "expert"
	default:
		return "unknown"
	}
}

// SecurityLevel is the classified risk tier of a query/operation pair.
type SecurityLevel string

// Security levels.
const (
	SecurityStandard SecurityLevel = "standard"
	SecurityElevated SecurityLevel = "elevated"
	SecurityCritical SecurityLevel = "critical"
)

// ExecutionMode is the chosen execution strategy for a query.
type ExecutionMode string

// Execution modes, in decreasing order of local-only preference used when
// building fallback chains.
const (
	OfflineLocal     ExecutionMode = "offline_local"
	HybridLocalFirst ExecutionMode = "hybrid_local_first"
	HybridCloudFirst ExecutionMode = "hybrid_cloud_first"
	CloudOnly        ExecutionMode = "cloud_only"
)

// Size is a model-size class with the intrinsic resource attributes the
// router compares against live device availability. The numbers are part
// of the contract.
type Size struct {
	Label   string
	RAMGB   float64
	VRAMGB  float64
}

// Defined model sizes, in increasing order of capability.
var (
	Nano1B  = Size{Label: "nano-1b", RAMGB: 2, VRAMGB: 0.5}
	Small3B = Size{Label: "small-3b", RAMGB: 6, VRAMGB: 2}
	Medium7B = Size{Label: "medium-7b", RAMGB: 14, VRAMGB: 4}
	Large13B = Size{Label: "large-13b", RAMGB: 26, VRAMGB: 8}
	XL34B    = Size{Label: "xl-34b", RAMGB: 68, VRAMGB: 16}
	Ultra200B = Size{Label: "ultra-200b", RAMGB: 400, VRAMGB: 80}
)

// Sizes lists every defined size, ascending by capability — used by
// selection logic that needs to scan for the largest size that fits.
var Sizes = []Size{Nano1B, Small3B, Medium7B, Large13B, XL34B, Ultra200B}

// Status is a LoadedModule's position in the loader state machine:
// NotLoaded -> Loading -> Ready | Error; Ready -> Unloading -> (removed).
type Status string

// LoadedModule states.
const (
	NotLoaded Status = "not_loaded"
	Loading   Status = "loading"
	Ready     Status = "ready"
	Unloading Status = "unloading"
	Error     Status = "error"
)

// Spec declares a module's identity, resource footprint, and dependency
// graph. Mutated only by the loader (usage counters), always under the
// loader lock.
type Spec struct {
	Name                  string
	ModuleType            Type
	Version               string
	Priority              int // >= 10 is pinned/unevictable
	SizeMB                int
	MemoryRequirementMB   int
	Dependencies          []string
	Capabilities          []string
	QuantizationSupported bool
	ModelPath             string
	TokenizerPath         string

	UsageCount int
	LastUsed   *time.Time
}

// Pinned reports whether the module's priority makes it unevictable
// (invariant I3).
func (s *Spec) Pinned() bool {
	return s.Priority >= 10
}

// Loaded is the mutable runtime record tracking a Spec's residency state.
type Loaded struct {
	Spec              *Spec
	Status            Status
	LoadTime          time.Time
	MemoryAllocatedMB int
	ErrorMessage      string

	// ResolvedModelPath is the path actually used for this residency —
	// the quantizer's rewritten path when quantization ran, Spec.ModelPath
	// otherwise. Kept off Spec so the catalog entry stays stable across
	// unload/reload cycles and the quantizer's (path, precision) cache key
	// never compounds.
	ResolvedModelPath string
}
