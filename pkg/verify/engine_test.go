package verify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/verify"
)

func allLayers() []string {
	return []string{
		verify.LayerSchema, verify.LayerPlausibility, verify.LayerSecurity,
		verify.LayerCrossReference, verify.LayerLLMCritique,
	}
}

func newEngine(layers []string) *verify.Engine {
	return verify.New(layers, 0.7, verify.NewRegexScanner(), clock.NewFake(time.Unix(0, 0)))
}

func TestVerifyConfidenceAlwaysInUnitRange(t *testing.T) {
	e := newEngine(allLayers())
	inputs := []interface{}{
		"SOME SHOUTED ALL CAPS OUTPUT THAT GOES ON",
		"a perfectly normal sentence describing the weather today",
		map[string]interface{}{"foo": "bar"},
		"",
	}
	for _, in := range inputs {
		r := e.Verify(context.Background(), in, nil, nil)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

// Scenario 6: a code block containing eval( and a hallucination marker,
// with two agreeing tool results, must be rejected.
func TestVerifyScenarioSixRejectsUnsafeCodeWithHallucination(t *testing.T) {
	e := newEngine([]string{verify.LayerPlausibility, verify.LayerSecurity, verify.LayerCrossReference})

	output := `def run(data):
    # as an AI language model, I will process the payload
    result = eval(data)
    return result
`
	toolResults := []verify.ToolResult{
		{ToolName: "linter", Success: true, Output: "flagged"},
		{ToolName: "reviewer", Success: true, Output: "flagged"},
	}

	r := e.Verify(context.Background(), output, nil, toolResults)

	require.NotNil(t, r.SecurityScan)
	assert.GreaterOrEqual(t, r.SecurityScan.RiskScore, 0.5)
	assert.Less(t, r.Confidence, 0.7)
	assert.False(t, r.IsVerified)
	require.NotEmpty(t, r.Recommendations)
	assert.Contains(t, r.Recommendations[0], "REJECT")
}

func TestVerifySchemaLayerFlagsMissingRequiredField(t *testing.T) {
	e := newEngine([]string{verify.LayerSchema})
	schema := &verify.Schema{Fields: []verify.FieldSpec{
		{Name: "status", Required: true, Type: verify.FieldTypeString},
	}}

	r := e.Verify(context.Background(), map[string]interface{}{"other": "value"}, &verify.Context{Schema: schema}, nil)

	// A single schema violation costs a flat 0.15 and alone doesn't drop
	// below the 0.7 threshold, but it must still surface as an issue.
	assert.Less(t, r.Confidence, 1.0)
	assert.NotEmpty(t, r.Issues)
}

func TestVerifyCrossReferenceNumericOutlierLowersAgreement(t *testing.T) {
	e := newEngine([]string{verify.LayerCrossReference})

	toolResults := []verify.ToolResult{
		{ToolName: "a", Success: true, Output: 100.0},
		{ToolName: "b", Success: true, Output: 102.0},
		{ToolName: "c", Success: true, Output: 101.0},
		{ToolName: "d", Success: true, Output: 99.0},
		{ToolName: "e", Success: true, Output: 101.0},
		{ToolName: "f", Success: true, Output: 100.0},
		{ToolName: "g", Success: true, Output: 102.0},
		{ToolName: "h", Success: true, Output: 100.0},
		{ToolName: "i", Success: true, Output: 5000.0}, // outlier, z ~ 2.67
	}

	r := e.Verify(context.Background(), "irrelevant text output for cross reference check", nil, toolResults)
	require.NotNil(t, r.CrossReferences)
	assert.Greater(t, r.CrossReferences["outlier_fraction"], 0.0)
}

func TestVerifyPlainTextAcceptedWhenClean(t *testing.T) {
	e := newEngine(allLayers())
	r := e.Verify(context.Background(), "The weather today is mild with a light breeze from the west.", nil, nil)

	assert.True(t, r.IsVerified)
	assert.Equal(t, []string{"ACCEPT"}, r.Recommendations)
}
