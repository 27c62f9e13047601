package verify

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/internal/telemetry"
)

// Layer names, used both as enabled_layers config entries and LayerResult
// tags.
const (
	LayerSchema         = "schema"
	LayerPlausibility   = "plausibility"
	LayerSecurity       = "security"
	LayerCrossReference = "cross_reference"
	LayerLLMCritique    = "llm_critique"
)

// Engine orchestrates the verification layers and fuses their outcomes
// into one Result, generalizing the teacher framework's capability
// registry (independently testable units composed behind one entry
// point).
type Engine struct {
	enabledLayers     map[string]bool
	threshold         float64
	scanner           Scanner
	clock             clock.Clock
	historicalDefault float64
	instruments       *telemetry.Instruments
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithHistoricalDefault overrides the historical success rate that
// successRate returns for an empty tool_results slice; defaults to 0.7.
// Verify only blends in a historical rate when tool_results is non-empty,
// so Verify itself never uses this value.
func WithHistoricalDefault(rate float64) Option {
	return func(e *Engine) { e.historicalDefault = rate }
}

// WithInstruments attaches the OTel histogram Verify records fused
// confidence against.
func WithInstruments(inst *telemetry.Instruments) Option {
	return func(e *Engine) { e.instruments = inst }
}

// New creates an Engine running enabledLayers (any of LayerSchema,
// LayerPlausibility, LayerSecurity, LayerCrossReference,
// LayerLLMCritique) and verifying confidence against threshold.
func New(enabledLayers []string, threshold float64, scanner Scanner, clk clock.Clock, opts ...Option) *Engine {
	set := make(map[string]bool, len(enabledLayers))
	for _, l := range enabledLayers {
		set[l] = true
	}
	if scanner == nil {
		scanner = NewRegexScanner()
	}
	e := &Engine{
		enabledLayers:     set,
		threshold:         threshold,
		scanner:           scanner,
		clock:             clk,
		historicalDefault: 0.7,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify runs every enabled layer against output (either a mapping or
// text), folds in historical tool-result success, and produces a fused
// Result with recommendations, per the ten-step verification algorithm.
func (e *Engine) Verify(goCtx context.Context, output interface{}, ctx *Context, toolResults []ToolResult) Result {
	confidence := 1.0
	var layers []LayerResult
	var issues []string
	var crossRefs map[string]interface{}
	var scan *ScanResult

	if mapping, ok := output.(map[string]interface{}); ok && e.enabledLayers[LayerSchema] && ctx != nil && ctx.Schema != nil {
		result, layerIssues := checkSchema(mapping, ctx.Schema)
		confidence += result.Delta
		layers = append(layers, result)
		issues = append(issues, layerIssues...)
	}

	text, isText := output.(string)

	if isText && e.enabledLayers[LayerPlausibility] {
		result, layerIssues := checkPlausibility(text)
		confidence += result.Delta
		layers = append(layers, result)
		issues = append(issues, layerIssues...)
	}

	if isText && e.enabledLayers[LayerSecurity] {
		result, scanResult, layerIssues := checkSecurity(text, e.scanner)
		if result.Ran {
			confidence += result.Delta
			scan = scanResult
			issues = append(issues, layerIssues...)
		}
		layers = append(layers, result)
	}

	if e.enabledLayers[LayerCrossReference] && len(toolResults) > 0 {
		result, refs, layerIssues := checkCrossReference(toolResults)
		confidence += result.Delta
		crossRefs = refs
		layers = append(layers, result)
		issues = append(issues, layerIssues...)
	}

	if isText && e.enabledLayers[LayerLLMCritique] {
		result, layerIssues := checkCritique(text)
		confidence += result.Delta
		layers = append(layers, result)
		issues = append(issues, layerIssues...)
	}

	confidence = clamp01(confidence)

	// Step 8: historical is the observed success rate over tool_results
	// itself — not a caller-supplied override — computed only when results
	// were actually provided. historicalDefault only covers an empty slice
	// (division by zero), which this branch never passes.
	if len(toolResults) > 0 {
		historical := successRate(toolResults, e.historicalDefault)
		confidence = 0.7*confidence + 0.3*historical
	}

	isVerified := confidence >= e.threshold

	e.instruments.RecordVerificationScore(goCtx, confidence)

	return Result{
		QueryID:         uuid.NewString(),
		IsVerified:      isVerified,
		Confidence:      confidence,
		ConfidenceLevel: LevelFor(confidence),
		LayerResults:    layers,
		Issues:          issues,
		Recommendations: recommend(layers, isVerified),
		CrossReferences: crossRefs,
		SecurityScan:    scan,
		Timestamp:       e.clock.Now(),
	}
}

// successRate computes the fraction of toolResults with Success set,
// per step 8 of the verification algorithm. defaultRate only applies to
// the division-by-zero edge case, since callers only reach here with a
// non-empty slice.
func successRate(toolResults []ToolResult, defaultRate float64) float64 {
	if len(toolResults) == 0 {
		return defaultRate
	}
	successes := 0
	for _, r := range toolResults {
		if r.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(toolResults))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// recommend derives actionable strings from layer outcomes: high security
// risk rejects outright; any other layer failure (plausibility,
// consensus) asks for review; a clean run accepts.
func recommend(layers []LayerResult, isVerified bool) []string {
	for _, l := range layers {
		if l.Layer == LayerSecurity && l.Ran && !l.Passed {
			return []string{"REJECT: security scan risk score exceeds threshold"}
		}
	}

	var reviewReasons []string
	for _, l := range layers {
		if !l.Ran || l.Passed {
			continue
		}
		reviewReasons = append(reviewReasons, l.Layer)
	}
	if len(reviewReasons) > 0 {
		return []string{"REVIEW: " + strings.Join(reviewReasons, ", ") + " layer(s) flagged issues"}
	}
	if !isVerified {
		return []string{"REVIEW: confidence below threshold"}
	}
	return []string{"ACCEPT"}
}
