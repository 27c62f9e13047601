package quantizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusai/querycore/pkg/quantizer"
)

func TestSimulatedIdempotentPerPathAndPrecision(t *testing.T) {
	q := quantizer.NewSimulated()

	path1, pct1, err := q.Quantize("models/llama.bin", quantizer.Int8, 8)
	require.NoError(t, err)

	path2, pct2, err := q.Quantize("models/llama.bin", quantizer.Int8, 32)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, pct1, pct2)
}

func TestSimulatedDistinctPrecisionsDiffer(t *testing.T) {
	q := quantizer.NewSimulated()

	int8Path, int8Pct, err := q.Quantize("models/llama.bin", quantizer.Int8, 8)
	require.NoError(t, err)

	fp16Path, fp16Pct, err := q.Quantize("models/llama.bin", quantizer.FP16, 8)
	require.NoError(t, err)

	assert.NotEqual(t, int8Path, fp16Path)
	assert.NotEqual(t, int8Pct, fp16Pct)
}

func TestSimulatedSupports(t *testing.T) {
	q := quantizer.NewSimulated()
	assert.True(t, q.Supports("models/llama.bin"))
	assert.False(t, q.Supports(""))
}

func TestNoOpNeverSupportsAndAlwaysErrors(t *testing.T) {
	var n quantizer.NoOp
	assert.False(t, n.Supports("models/llama.bin"))

	_, _, err := n.Quantize("models/llama.bin", quantizer.Int8, 8)
	assert.Error(t, err)
}

func TestSimulatedUnsupportedPrecisionErrors(t *testing.T) {
	q := quantizer.NewSimulated()
	_, _, err := q.Quantize("models/llama.bin", quantizer.Precision("fp32"), 8)
	assert.Error(t, err)
}
