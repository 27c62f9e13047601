package verify

import (
	"regexp"
	"strconv"
	"strings"
)

// domainRange is a fixed plausible numeric range for one recognized unit
// domain.
type domainRange struct {
	min, max float64
}

// domainRanges is the fixed set of domains the plausibility layer checks
// an extracted (number, unit) pair against. Per the open-question
// resolution recorded in the design ledger, a number is implausible only
// if it falls outside every domain whose unit hint matches — i.e. any
// matching domain suffices to call it plausible.
var domainRanges = map[string]domainRange{
	"temperature": {-100, 60},    // celsius
	"percentage":  {0, 100},
	"coordinate":  {-180, 180},
	"year":        {1000, 2200},
	"currency":    {0, 1e12},
	"probability": {0, 1},
	"file_size":   {0, 1e9}, // MB
	"memory":      {0, 1e7}, // MB
	"latency":     {0, 600000}, // ms
	"accuracy":    {0, 100},
}

var unitToDomain = map[string]string{
	"%":       "percentage",
	"percent": "percentage",
	"°c":      "temperature",
	"c":       "temperature",
	"°":       "coordinate",
	"deg":     "coordinate",
	"ms":      "latency",
	"mb":      "memory",
	"gb":      "file_size",
	"$":       "currency",
	"usd":     "currency",
}

var numberWithUnit = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(%|°c|°|deg|ms|mb|gb|\$|usd|percent)(?:\W|$)`)

var hallucinationMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as an ai language model`),
	regexp.MustCompile(`(?i)i do not have access to real-time`),
	regexp.MustCompile(`(?i)i cannot browse the internet`),
	regexp.MustCompile(`(?i)i am just a language model`),
	regexp.MustCompile(`(?i)as a large language model`),
}

var codeSafetyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`eval\(`),
	regexp.MustCompile(`exec\(`),
	regexp.MustCompile(`os\.system`),
	regexp.MustCompile(`pickle\.loads`),
	regexp.MustCompile(`yaml\.load\(`),
	regexp.MustCompile(`subprocess\.(call|run|Popen)`),
}

// checkPlausibility implements the numeric, hallucination-marker,
// repetition, and code-safety plausibility checks, clamping the aggregate
// impact to [-0.5, 0].
func checkPlausibility(output string) (LayerResult, []string) {
	var issues []string
	impact := 0.0

	if delta, found := numericPlausibilityImpact(output); found {
		impact += delta
		issues = append(issues, "plausibility: numeric value outside expected range")
	}

	for _, marker := range hallucinationMarkers {
		if marker.MatchString(output) {
			impact -= 0.15
			issues = append(issues, "plausibility: hallucination marker detected")
		}
	}

	if delta, found := repetitionImpact(output); found {
		impact += delta
		issues = append(issues, "plausibility: excessive word repetition")
	}

	for _, p := range codeSafetyPatterns {
		if p.MatchString(output) {
			impact -= 0.2
			issues = append(issues, "plausibility: unsafe code pattern detected")
		}
	}

	if impact < -0.5 {
		impact = -0.5
	}
	if impact > 0 {
		impact = 0
	}

	return LayerResult{
		Layer:   "plausibility",
		Ran:     true,
		Passed:  impact > -0.3,
		Delta:   impact,
		Details: map[string]interface{}{"is_plausible": impact > -0.3},
	}, issues
}

func numericPlausibilityImpact(output string) (float64, bool) {
	matches := numberWithUnit.FindAllStringSubmatch(strings.ToLower(output), -1)
	impact := 0.0
	found := false
	for _, m := range matches {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		domain, ok := unitToDomain[m[2]]
		if !ok {
			continue
		}
		rng := domainRanges[domain]
		if n < rng.min || n > rng.max {
			impact -= 0.1
			found = true
		}
	}
	return impact, found
}

func repetitionImpact(output string) (float64, bool) {
	words := strings.Fields(strings.ToLower(output))
	if len(words) < 10 {
		return 0, false
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	impact := 0.0
	found := false
	total := float64(len(words))
	for _, c := range counts {
		if float64(c)/total > 0.3 {
			impact -= 0.1
			found = true
		}
	}
	return impact, found
}
