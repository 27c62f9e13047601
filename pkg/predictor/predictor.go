// Package predictor implements the Usage Predictor: from a query (and
// optional file extensions) it scores candidate module types by keyword
// and extension hits, boosts them using Jaccard similarity against a
// bounded history window, and maintains a symmetric co-occurrence counter
// over the module types it has jointly emitted.
package predictor

import (
	"sort"
	"strings"
	"sync"

	"github.com/nimbusai/querycore/pkg/module"
)

// keywordMap assigns each module type a fixed set of trigger keywords.
// Scores are hits / len(keywords), so the set sizes matter; this table is
// part of this implementation's contract, mirrored from the complexity
// analyzer's regex-catalog approach.
var keywordMap = map[module.Type][]string{
	module.TypeVision: {
		"image", "photo", "picture", "diagram", "screenshot", "visual",
		"chart", "figure", "drawing", "video", "frame",
	},
	module.TypeCode: {
		"code", "function", "compile", "bug", "refactor", "syntax",
		"variable", "class", "method", "script", "debug", "repository",
	},
	module.TypeAudio: {
		"audio", "sound", "voice", "speech", "transcribe", "podcast",
		"music", "recording",
	},
	module.TypeReasoning: {
		"prove", "why", "explain", "reason", "logic", "derive",
		"because", "therefore", "argument", "analyze",
	},
	module.TypeEmbedding: {
		"similar", "embedding", "cluster", "nearest", "semantic",
		"vector", "retrieve", "search",
	},
	module.TypeSecurity: {
		"exploit", "vulnerability", "cve", "injection", "malware",
		"credential", "encrypt", "password", "firewall",
	},
}

// extensionMap floors a module type's score at 0.8 whenever a file with a
// matching extension is present in the query's file_types.
var extensionMap = map[string]module.Type{
	".png":  module.TypeVision,
	".jpg":  module.TypeVision,
	".jpeg": module.TypeVision,
	".gif":  module.TypeVision,
	".py":   module.TypeCode,
	".go":   module.TypeCode,
	".js":   module.TypeCode,
	".ts":   module.TypeCode,
	".wav":  module.TypeAudio,
	".mp3":  module.TypeAudio,
	".flac": module.TypeAudio,
}

const (
	emitThreshold       = 0.3
	historySimilarity   = 0.5
	historyBoost        = 0.2
	maxHistoryEntries   = 50
	coOccurrenceDefault = 0
)

// Prediction is a single module-type score emitted by Predict.
type Prediction struct {
	Type  module.Type
	Score float64
}

type historyEntry struct {
	tokens map[string]struct{}
	types  []module.Type
}

// Predictor scores queries against a fixed keyword table and a bounded
// history of prior queries, per the usage-prediction algorithm.
type Predictor struct {
	mu      sync.Mutex
	history []historyEntry
	coOccur *coOccurrence
}

// New creates a Predictor with an empty history and co-occurrence table.
func New() *Predictor {
	return &Predictor{coOccur: newCoOccurrence()}
}

// Predict scores module types for query and fileTypes, folds in history
// similarity, appends to history, and updates co-occurrence over the
// emitted set. Returned predictions are sorted descending by score and
// include only types scoring above emitThreshold.
func (p *Predictor) Predict(query string, fileTypes []string) []Prediction {
	tokens := tokenize(query)
	scores := scoreKeywords(tokens)
	applyExtensionFloor(scores, fileTypes)

	p.mu.Lock()
	applyHistoryBoost(scores, tokens, p.history)
	p.mu.Unlock()

	emitted := emit(scores)

	p.mu.Lock()
	p.appendHistory(tokens, emitted)
	p.mu.Unlock()

	types := make([]module.Type, 0, len(emitted))
	for _, e := range emitted {
		types = append(types, e.Type)
	}
	p.coOccur.record(types)

	return emitted
}

// CoOccurrence returns the recorded joint-occurrence count for an
// unordered pair of module types.
func (p *Predictor) CoOccurrence(a, b module.Type) int {
	return p.coOccur.get(a, b)
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[trimPunct(f)] = struct{}{}
	}
	return set
}

func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:\"'()[]{}")
}

func scoreKeywords(tokens map[string]struct{}) map[module.Type]float64 {
	scores := make(map[module.Type]float64, len(keywordMap))
	for t, keywords := range keywordMap {
		hits := 0
		for _, kw := range keywords {
			if _, ok := tokens[kw]; ok {
				hits++
			}
		}
		score := float64(hits) / float64(len(keywords))
		if score > 1 {
			score = 1
		}
		scores[t] = score
	}
	return scores
}

func applyExtensionFloor(scores map[module.Type]float64, fileTypes []string) {
	for _, ext := range fileTypes {
		t, ok := extensionMap[strings.ToLower(ext)]
		if !ok {
			continue
		}
		if scores[t] < 0.8 {
			scores[t] = 0.8
		}
	}
}

func applyHistoryBoost(scores map[module.Type]float64, tokens map[string]struct{}, history []historyEntry) {
	for _, h := range history {
		if jaccard(tokens, h.tokens) < historySimilarity {
			continue
		}
		for _, t := range h.types {
			boosted := scores[t] + historyBoost
			if boosted > 1 {
				boosted = 1
			}
			scores[t] = boosted
		}
	}
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func emit(scores map[module.Type]float64) []Prediction {
	out := make([]Prediction, 0, len(scores))
	for t, s := range scores {
		if s > emitThreshold {
			out = append(out, Prediction{Type: t, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func (p *Predictor) appendHistory(tokens map[string]struct{}, emitted []Prediction) {
	types := make([]module.Type, 0, len(emitted))
	for _, e := range emitted {
		types = append(types, e.Type)
	}
	p.history = append(p.history, historyEntry{tokens: tokens, types: types})
	if len(p.history) > maxHistoryEntries {
		p.history = p.history[len(p.history)-maxHistoryEntries:]
	}
}
