package verify

import (
	"regexp"
	"strings"
)

// Severity is a scanner finding's risk tier.
type Severity string

// Severity tiers and their risk weights.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityWeight = map[Severity]float64{
	SeverityLow:      0.2,
	SeverityMedium:   0.5,
	SeverityHigh:     0.8,
	SeverityCritical: 1.0,
}

// Finding is one scanner hit.
type Finding struct {
	Type          string
	Severity      Severity
	Line          int
	AutoPatchable bool
}

// ScanResult is the security layer's audit output.
type ScanResult struct {
	Findings  []Finding
	RiskScore float64
	Passed    bool
}

// Scanner is the pluggable code-safety scanner interface. A primary
// implementation may shell out to an external static analyzer; RegexScanner is
// the mandatory, self-contained fallback so this core never depends on an
// external tool being present.
type Scanner interface {
	Scan(code string) []Finding
}

// codeHeuristic tokens that suggest output looks like source code.
var codeHeuristicTokens = []string{"def ", "class ", "import ", "from "}

// looksLikeCode applies the heuristic: contains any code token and is
// long enough to be worth scanning.
func looksLikeCode(output string) bool {
	if len(output) <= 50 {
		return false
	}
	for _, tok := range codeHeuristicTokens {
		if strings.Contains(output, tok) {
			return true
		}
	}
	return false
}

type patternFinding struct {
	pattern  *regexp.Regexp
	kind     string
	severity Severity
	patch    bool
}

// RegexScanner is the mandatory fallback Scanner: a fixed list of
// regex-detected unsafe patterns, each with a severity and an
// auto-patchable hint.
type RegexScanner struct {
	patterns []patternFinding
}

// NewRegexScanner builds the fallback scanner's fixed pattern catalog.
func NewRegexScanner() *RegexScanner {
	return &RegexScanner{patterns: []patternFinding{
		{regexp.MustCompile(`eval\(`), "unsafe_eval", SeverityCritical, false},
		{regexp.MustCompile(`exec\(`), "unsafe_exec", SeverityCritical, false},
		{regexp.MustCompile(`os\.system\(`), "shell_invocation", SeverityHigh, false},
		{regexp.MustCompile(`subprocess\.(call|run|Popen)\(`), "shell_invocation", SeverityHigh, false},
		{regexp.MustCompile(`pickle\.loads?\(`), "unsafe_deserialization", SeverityHigh, false},
		{regexp.MustCompile(`yaml\.load\(`), "unsafe_deserialization", SeverityMedium, true},
		{regexp.MustCompile(`\bsudo\b`), "privilege_escalation", SeverityCritical, false},
		{regexp.MustCompile(`rm\s+-rf`), "destructive_command", SeverityCritical, false},
		{regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`), "hardcoded_credential", SeverityMedium, true},
		{regexp.MustCompile(`chmod\s+777`), "insecure_permissions", SeverityLow, true},
	}}
}

// Scan applies every pattern line-by-line and reports each hit.
func (s *RegexScanner) Scan(code string) []Finding {
	var findings []Finding
	lines := strings.Split(code, "\n")
	for lineNo, line := range lines {
		for _, p := range s.patterns {
			if p.pattern.MatchString(line) {
				findings = append(findings, Finding{
					Type: p.kind, Severity: p.severity, Line: lineNo + 1, AutoPatchable: p.patch,
				})
			}
		}
	}
	return findings
}

// checkSecurity runs scanner against output when it looks like code,
// computing risk_score = min(1, sum of severity weights) and a confidence
// delta of -risk_score*0.3.
func checkSecurity(output string, scanner Scanner) (LayerResult, *ScanResult, []string) {
	if !looksLikeCode(output) {
		return LayerResult{Layer: "security", Ran: false}, nil, nil
	}

	findings := scanner.Scan(output)
	risk := 0.0
	for _, f := range findings {
		risk += severityWeight[f.Severity]
	}
	if risk > 1 {
		risk = 1
	}

	passed := risk < 0.5
	scan := &ScanResult{Findings: findings, RiskScore: risk, Passed: passed}

	var issues []string
	if !passed {
		issues = append(issues, "security: scan risk score exceeds threshold")
	}

	return LayerResult{
		Layer:   "security",
		Ran:     true,
		Passed:  passed,
		Delta:   -risk * 0.3,
		Details: map[string]interface{}{"risk_score": risk, "finding_count": len(findings)},
	}, scan, issues
}
