package predictor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/predictor"
)

func TestPredictScoresKeywordHits(t *testing.T) {
	p := predictor.New()
	preds := p.Predict("please refactor this function and fix the bug in the class", nil)

	assert.NotEmpty(t, preds)
	assert.Equal(t, module.TypeCode, preds[0].Type)
	assert.Greater(t, preds[0].Score, 0.3)
}

func TestPredictExtensionFloor(t *testing.T) {
	p := predictor.New()
	preds := p.Predict("take a look at this", []string{".png"})

	var visionScore float64
	for _, pr := range preds {
		if pr.Type == module.TypeVision {
			visionScore = pr.Score
		}
	}
	assert.GreaterOrEqual(t, visionScore, 0.8)
}

func TestPredictHistoryBoostsSimilarQuery(t *testing.T) {
	p := predictor.New()
	p.Predict("refactor the function and debug the script", nil)

	// Shares most tokens with the prior query (jaccard >= 0.5) but on its
	// own has too few keyword hits to clear the emit threshold.
	preds := p.Predict("refactor the function and itself", nil)

	var codeScore float64
	for _, pr := range preds {
		if pr.Type == module.TypeCode {
			codeScore = pr.Score
		}
	}
	assert.Greater(t, codeScore, 0.3)
}

func TestPredictBelowThresholdOmitted(t *testing.T) {
	p := predictor.New()
	preds := p.Predict("hello there", nil)
	assert.Empty(t, preds)
}

func TestCoOccurrenceSymmetric(t *testing.T) {
	p := predictor.New()
	p.Predict("refactor this function and debug the script, then explain why and prove the reason with logic", nil)

	a := p.CoOccurrence(module.TypeCode, module.TypeReasoning)
	b := p.CoOccurrence(module.TypeReasoning, module.TypeCode)
	assert.Equal(t, 1, a)
	assert.Equal(t, a, b)
}
