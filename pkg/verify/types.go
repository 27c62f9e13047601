// Package verify implements the Multi-Layer Verification Engine: a
// pipeline of independent validator layers (schema, plausibility,
// security, cross_reference, llm_critique) that fuse into one confidence
// score and recommendation, modeled on the teacher framework's
// capability-registry pattern of pluggable, independently testable units
// composed behind one orchestrating entry point.
package verify

import "time"

// ToolResult is one external tool invocation's outcome, used as input to
// the cross_reference layer.
type ToolResult struct {
	ToolName   string
	Parameters map[string]interface{}
	Success    bool
	Output     interface{}
	Error      string
	Timestamp  time.Time
	DurationMS float64
}

// ConfidenceLevel buckets a numeric confidence for human-facing reporting.
type ConfidenceLevel string

// Confidence level buckets, per the contract's thresholds.
const (
	VeryLow  ConfidenceLevel = "very_low"  // < 0.4
	Low      ConfidenceLevel = "low"       // < 0.6
	Medium   ConfidenceLevel = "medium"    // < 0.75
	High     ConfidenceLevel = "high"      // < 0.9
	VeryHigh ConfidenceLevel = "very_high" // >= 0.9
)

// LevelFor buckets confidence into its ConfidenceLevel.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence < 0.4:
		return VeryLow
	case confidence < 0.6:
		return Low
	case confidence < 0.75:
		return Medium
	case confidence < 0.9:
		return High
	default:
		return VeryHigh
	}
}

// LayerResult is one layer's audit trail: whether it ran, what it found,
// and the confidence delta it applied.
type LayerResult struct {
	Layer   string
	Ran     bool
	Passed  bool
	Delta   float64
	Details map[string]interface{}
}

// Result is the Verification Engine's fused output.
type Result struct {
	QueryID         string
	IsVerified      bool
	Confidence      float64
	ConfidenceLevel ConfidenceLevel
	LayerResults    []LayerResult
	Issues          []string
	Recommendations []string
	CrossReferences map[string]interface{}
	SecurityScan    *ScanResult
	Timestamp       time.Time
}

// Schema describes the expected shape of a mapping output for the schema
// layer.
type Schema struct {
	Fields []FieldSpec
}

// FieldSpec constrains one field of a mapping output.
type FieldSpec struct {
	Name     string
	Required bool
	Type     FieldType
	Min      *float64
	Max      *float64
	Pattern  string // regex, applied when Type is FieldTypeString
}

// FieldType is the set of schema-checkable value types.
type FieldType string

// Supported schema field types.
const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "bool"
	FieldTypeList   FieldType = "list"
	FieldTypeDict   FieldType = "dict"
)

// Context carries optional inputs the verify algorithm consults: only a
// schema for mapping outputs. Historical success rate is never supplied
// out of band — it is always computed from tool_results (see Engine.Verify
// step 8), so there is no override field for it here.
type Context struct {
	Schema *Schema
}
