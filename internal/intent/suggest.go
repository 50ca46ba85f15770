package intent

import (
	"math"
	"regexp"
	"strings"
)

// suggestThreshold is the minimum cosine similarity for a suggestion.
const suggestThreshold = 0.5

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// fingerprint is a term-frequency vector over a phrase's words.
type fingerprint struct {
	tokens map[string]float64
	norm   float64
}

func newFingerprint(text string) *fingerprint {
	counts := make(map[string]float64)
	for _, token := range tokenSplitPattern.Split(strings.ToLower(text), -1) {
		if len(token) < 3 {
			continue
		}
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}
	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	return &fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

func cosineSimilarity(a, b *fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		dot += count * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}

// Suggest returns the trigger whose words best overlap text. It is used to
// phrase "did you mean" hints for commands Match rejected and never selects
// an operation by itself.
func (r *Resolver) Suggest(text string) (Trigger, bool) {
	query := newFingerprint(text)
	if query == nil || r == nil {
		return Trigger{}, false
	}
	var (
		best  Trigger
		score float64
	)
	for _, trig := range r.triggers {
		if s := cosineSimilarity(query, newFingerprint(trig.Phrase)); s > score {
			best, score = trig, s
		}
	}
	if score < suggestThreshold {
		return Trigger{}, false
	}
	return best, true
}
