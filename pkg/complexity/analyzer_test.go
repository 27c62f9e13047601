package complexity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/complexity"
	"github.com/nimbusai/querycore/pkg/module"
)

func TestAnalyzeTrivial(t *testing.T) {
	a := complexity.New(1000, 30*24*time.Hour, nil)
	result := a.Analyze("what is http")
	assert.Equal(t, module.Trivial, result.Complexity)
}

func TestAnalyzeExpert(t *testing.T) {
	a := complexity.New(1000, 30*24*time.Hour, nil)
	result := a.Analyze("prove that every bounded sequence has a convergent subsequence")
	assert.Equal(t, module.Expert, result.Complexity)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestAnalyzeDefaultsToModerate(t *testing.T) {
	a := complexity.New(1000, 30*24*time.Hour, nil)
	result := a.Analyze("purple elephants dance quietly somewhere")
	assert.Equal(t, module.Moderate, result.Complexity)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestAnalyzeShortQueryDowngrades(t *testing.T) {
	a := complexity.New(1000, 30*24*time.Hour, nil)
	// "analyze this" -> Moderate base, 2 words -> downgraded to Simple, *0.8
	result := a.Analyze("analyze this")
	assert.Equal(t, module.Simple, result.Complexity)
	assert.InDelta(t, 0.7*0.8, result.Confidence, 1e-9)
}

func TestAnalyzeIsCacheStableWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	a := complexity.New(1000, 30*24*time.Hour, fake)

	first := a.Analyze("prove that P equals NP")
	fake.Advance(time.Hour)
	second := a.Analyze("Prove That P Equals NP") // different case/whitespace, same normalized form

	assert.Equal(t, first.Complexity, second.Complexity)
	assert.InDelta(t, 0.95, second.Confidence, 1e-9)
}

func TestAnalyzeCacheExpiresAfterTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	a := complexity.New(1000, time.Hour, fake)

	a.Analyze("prove that P equals NP")
	fake.Advance(2 * time.Hour)
	second := a.Analyze("prove that P equals NP")

	assert.InDelta(t, 0.85, second.Confidence, 1e-9)
}
