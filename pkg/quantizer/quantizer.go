// Package quantizer defines the pluggable model-quantization interface and
// a deterministic, idempotent simulated implementation. Real ONNX/TensorRT
// toolchains are out of scope collaborators; this package only specifies
// their pre/post-conditions, per the core specification.
package quantizer

import (
	"fmt"
	"sync"
)

// Precision is a supported quantization target.
type Precision string

// Supported precisions.
const (
	Int8 Precision = "int8"
	FP16 Precision = "fp16"
	BF16 Precision = "bf16"
)

// Quantizer optimizes a model file at path to the requested precision. It
// must be idempotent keyed by (path, precision) and must never panic or
// propagate an error to the loader — callers downgrade any error to "no
// quantization".
type Quantizer interface {
	Supports(path string) bool
	Quantize(path string, precision Precision, maxBatchSize int) (newPath string, reductionPct float64, err error)
}

// reductionFor models the size reduction a precision typically achieves;
// advisory only, grounded in the spec's pre/post-condition contract rather
// than any real toolchain.
var reductionFor = map[Precision]float64{
	Int8: 62.5,
	FP16: 50.0,
	BF16: 50.0,
}

// Simulated is a self-contained Quantizer standing in for the ONNX/TensorRT
// toolchains, which are external collaborators out of this core's scope.
// It is idempotent: repeated calls for the same (path, precision) return
// the same cached result instead of recomputing.
type Simulated struct {
	mu    sync.Mutex
	cache map[cacheKey]cachedResult
}

type cacheKey struct {
	path      string
	precision Precision
}

type cachedResult struct {
	newPath      string
	reductionPct float64
}

// NewSimulated creates a Simulated quantizer.
func NewSimulated() *Simulated {
	return &Simulated{cache: make(map[cacheKey]cachedResult)}
}

// Supports reports true for any non-empty path; every model format is
// treated as quantizable by the simulated backend.
func (s *Simulated) Supports(path string) bool {
	return path != ""
}

// Quantize returns a deterministic simulated output path and the advisory
// reduction percentage for the requested precision. maxBatchSize is
// accepted but not observably used, per the spec's open question.
func (s *Simulated) Quantize(path string, precision Precision, maxBatchSize int) (string, float64, error) {
	key := cacheKey{path: path, precision: precision}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[key]; ok {
		return cached.newPath, cached.reductionPct, nil
	}

	pct, known := reductionFor[precision]
	if !known {
		return "", 0, fmt.Errorf("quantizer: unsupported precision %q", precision)
	}

	newPath := fmt.Sprintf("%s.%s", path, precision)
	s.cache[key] = cachedResult{newPath: newPath, reductionPct: pct}
	return newPath, pct, nil
}

// NoOp always fails, modeling a quantizer that is disabled or unavailable;
// the loader downgrades any such failure to "no quantization".
type NoOp struct{}

// Supports always returns false.
func (NoOp) Supports(string) bool { return false }

// Quantize always returns an error.
func (NoOp) Quantize(path string, precision Precision, maxBatchSize int) (string, float64, error) {
	return "", 0, fmt.Errorf("quantizer: disabled")
}
