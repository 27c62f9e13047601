package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// checkCrossReference computes consensus across toolResults: for
// categorical outputs, plurality vote and agreement ratio; for numeric
// outputs, mean/stddev/z-score outlier detection via gonum/stat. Combined
// agreement is the mean of categorical agreement and (1 - outlier
// fraction); consensus_reached requires agreement >= 0.7.
func checkCrossReference(results []ToolResult) (LayerResult, map[string]interface{}, []string) {
	if len(results) == 0 {
		return LayerResult{Layer: "cross_reference", Ran: false}, nil, nil
	}

	numeric, categorical := partitionOutputs(results)

	categoricalAgreement, plurality := pluralityAgreement(categorical)
	outlierFraction := numericOutlierFraction(numeric)

	agreement := (categoricalAgreement + (1 - outlierFraction)) / 2
	consensusReached := agreement >= 0.7
	crossConfidence := math.Min(1, agreement*1.2)
	delta := (crossConfidence - 0.7) * 0.2

	var issues []string
	if !consensusReached {
		issues = append(issues, "cross_reference: tool results failed to reach consensus")
	}

	crossRefs := map[string]interface{}{
		"agreement":           agreement,
		"consensus_reached":   consensusReached,
		"categorical_vote":    plurality,
		"outlier_fraction":    outlierFraction,
		"cross_confidence":    crossConfidence,
		"numeric_sample_size": len(numeric),
	}

	return LayerResult{
		Layer:   "cross_reference",
		Ran:     true,
		Passed:  consensusReached,
		Delta:   delta,
		Details: crossRefs,
	}, crossRefs, issues
}

func partitionOutputs(results []ToolResult) ([]float64, []string) {
	var numeric []float64
	var categorical []string
	for _, r := range results {
		if !r.Success {
			continue
		}
		switch v := r.Output.(type) {
		case float64:
			numeric = append(numeric, v)
		case float32:
			numeric = append(numeric, float64(v))
		case int:
			numeric = append(numeric, float64(v))
		default:
			categorical = append(categorical, fmt.Sprintf("%v", v))
		}
	}
	return numeric, categorical
}

func pluralityAgreement(categorical []string) (float64, string) {
	if len(categorical) == 0 {
		return 1, ""
	}
	counts := make(map[string]int, len(categorical))
	for _, c := range categorical {
		counts[c]++
	}
	var winner string
	best := 0
	for v, c := range counts {
		if c > best {
			best, winner = c, v
		}
	}
	return float64(best) / float64(len(categorical)), winner
}

// numericOutlierFraction marks values with |z-score| > 2 as outliers
// using gonum/stat's mean and standard deviation.
func numericOutlierFraction(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) == 1 {
		return 0
	}

	mean := stat.Mean(values, nil)
	stddev := stat.StdDev(values, nil)
	if stddev == 0 {
		return 0
	}

	outliers := 0
	for _, v := range values {
		z := (v - mean) / stddev
		if math.Abs(z) > 2 {
			outliers++
		}
	}
	return float64(outliers) / float64(len(values))
}
