// Package security classifies a (operation, query) pair into a
// SecurityLevel using two ordered pattern lists, logging every non-Standard
// hit to a process-local event list guarded by its own mutex.
package security

import (
	"regexp"
	"sync"
	"time"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/module"
)

var criticalPatterns = compileAll(
	`\bsudo\b`,
	`rm\s+-rf`,
	`chmod\s+777`,
	`drop\s+database`,
	`eval\(`,
	`exec\(`,
	`\bsubprocess\b`,
	`:\(\)\{.*:\|:&.*\};:`, // fork bomb
)

var elevatedPatterns = compileAll(
	`\bimport\s+(os|sys)\b`,
	`\bopen\(`,
	`\bwrite\(`,
	`\bread\(`,
	`\brequests\.(get|post)\(`,
	`\bsocket\.`,
	`\burllib\b`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Event records a non-Standard classification for audit.
type Event struct {
	Operation string
	Query     string
	Level     module.SecurityLevel
	At        time.Time
}

// Classifier maps (operation, query) to a SecurityLevel and keeps an
// append-only event log of every non-Standard hit.
type Classifier struct {
	mu     sync.Mutex
	events []Event
	clock  clock.Clock
}

// New creates a Classifier.
func New(clk clock.Clock) *Classifier {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Classifier{clock: clk}
}

// Classify returns the security tier for operation+query: first critical
// hit wins, else first elevated hit, else Standard.
func (c *Classifier) Classify(operation, query string) module.SecurityLevel {
	level := module.SecurityStandard

	for _, p := range criticalPatterns {
		if p.MatchString(query) || p.MatchString(operation) {
			level = module.SecurityCritical
			break
		}
	}
	if level == module.SecurityStandard {
		for _, p := range elevatedPatterns {
			if p.MatchString(query) || p.MatchString(operation) {
				level = module.SecurityElevated
				break
			}
		}
	}

	if level != module.SecurityStandard {
		c.mu.Lock()
		c.events = append(c.events, Event{
			Operation: operation,
			Query:     query,
			Level:     level,
			At:        c.clock.Now(),
		})
		c.mu.Unlock()
	}

	return level
}

// Events returns a snapshot of the logged non-Standard classifications.
func (c *Classifier) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
