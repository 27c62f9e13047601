// Package complexity classifies raw query text into a complexity tier with
// a confidence score, caching results by a stable digest of the normalized
// text so repeated queries are free within the history TTL.
package complexity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/module"
)

// family is one tier's ordered-scan regex pattern set.
type family struct {
	tier     module.Complexity
	patterns []*regexp.Regexp
}

// catalog is the contract regex catalog, scanned from Expert down to
// Trivial; the first family with any hit wins.
var catalog = []family{
	{
		tier: module.Expert,
		patterns: compileAll(
			`\bprove\b`, `\bproof\b`, `\btheorem\b`, `\bderive\b`,
			`\boptimi[sz]e\b.*\b(algorithm|system|architecture)\b`,
			`\bdesign\b.*\b(distributed|scalable|fault[- ]tolerant)\b`,
			`\bresearch\b`, `\bnovel\b`, `\bpublish(able)?\b`,
		),
	},
	{
		tier: module.Complex,
		patterns: compileAll(
			`\bdesign\b`, `\barchitect(ure)?\b`, `\bimplement\b.*\bsystem\b`,
			`\banalyze\b.*\btrade[- ]offs?\b`, `\bcompare\b.*\bapproaches\b`,
			`\bdebug\b.*\b(race condition|deadlock|memory leak)\b`,
		),
	},
	{
		tier: module.Moderate,
		patterns: compileAll(
			`\banaly[sz]e\b`, `\bcompare\b`, `\bexplain why\b`, `\bevaluate\b`,
			`\bsummari[sz]e\b.*\band\b`, `\brefactor\b`,
		),
	},
	{
		tier: module.Simple,
		patterns: compileAll(
			`\bdefine\b`, `\bdescribe\b`, `\blist\b`, `\bconvert\b`, `\btranslate\b`,
			`\bwrite a\b`,
		),
	},
	{
		tier: module.Trivial,
		patterns: compileAll(
			`\bwhat is\b`, `\bwho is\b`, `^hi\b`, `^hello\b`, `\bhow do you spell\b`,
		),
	},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Result is the outcome of analyzing one query.
type Result struct {
	Complexity module.Complexity
	Confidence float64
}

// Analyzer maps query text to a complexity tier, backed by a bounded
// history cache keyed on a digest of the normalized text.
type Analyzer struct {
	history    *history
	clock      clock.Clock
	historyTTL time.Duration
}

// New creates an Analyzer. maxHistory bounds the cache; historyTTL is how
// long a cached verdict is trusted before re-analysis (default 30 days per
// spec).
func New(maxHistory int, historyTTL time.Duration, clk clock.Clock) *Analyzer {
	if clk == nil {
		clk = clock.Real{}
	}
	if historyTTL == 0 {
		historyTTL = 30 * 24 * time.Hour
	}
	return &Analyzer{
		history:    newHistory(maxHistory),
		clock:      clk,
		historyTTL: historyTTL,
	}
}

// Analyze classifies query text, consulting and updating the history
// cache.
func (a *Analyzer) Analyze(query string) Result {
	normalized := normalize(query)
	digest := digest(normalized)

	if entry, ok := a.history.get(digest); ok {
		if a.clock.Now().Sub(entry.at) < a.historyTTL {
			return Result{Complexity: entry.tier, Confidence: 0.95}
		}
	}

	tier, confidence := classify(normalized)
	tier, confidence = adjustForLength(normalized, tier, confidence)

	a.history.put(digest, tier, a.clock.Now())
	return Result{Complexity: tier, Confidence: confidence}
}

func normalize(query string) string {
	return strings.TrimSpace(strings.ToLower(query))
}

func digest(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// classify scans the catalog from Expert down to Trivial, returning the
// first family that matches, or Moderate/0.5 if nothing matches.
func classify(normalized string) (module.Complexity, float64) {
	for _, fam := range catalog {
		for _, pattern := range fam.patterns {
			if pattern.MatchString(normalized) {
				if fam.tier == module.Moderate {
					return fam.tier, 0.7
				}
				return fam.tier, 0.85
			}
		}
	}
	return module.Moderate, 0.5
}

// adjustForLength applies the spec's word-count adjustment: short queries
// at or above Moderate are downgraded; long queries at or below Moderate
// are upgraded (capped at Expert), each with a confidence penalty
// (x0.8 and x0.9 respectively).
func adjustForLength(normalized string, tier module.Complexity, confidence float64) (module.Complexity, float64) {
	words := len(strings.Fields(normalized))

	if words < 5 && tier >= module.Moderate {
		tier--
		confidence *= 0.8
	} else if words > 50 && tier <= module.Moderate {
		if tier < module.Expert {
			tier++
		}
		confidence *= 0.9
	}
	return tier, confidence
}
