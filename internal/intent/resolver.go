package intent

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tailor/internal/services"
	"tailor/internal/transform"
)

// Trigger maps one lowercase phrase to an operation id.
type Trigger struct {
	Phrase    string
	Operation string
}

// Resolver maps free text to an operation id by substring matching. Longer
// phrases are tried first; equal lengths keep their insertion order.
type Resolver struct {
	triggers []Trigger
}

// NewResolver validates triggers against reg and freezes them in resolution
// order.
func NewResolver(reg *transform.Registry, triggers []Trigger) (*Resolver, error) {
	seen := make(map[string]string, len(triggers))
	ordered := make([]Trigger, 0, len(triggers))
	for _, trig := range triggers {
		phrase := normalize(trig.Phrase)
		if phrase == "" {
			return nil, fmt.Errorf("%w: empty trigger phrase for %q", services.ErrConfiguration, trig.Operation)
		}
		if !reg.Has(trig.Operation) {
			return nil, fmt.Errorf("%w: trigger %q targets unknown operation %q", services.ErrConfiguration, phrase, trig.Operation)
		}
		if prev, dup := seen[phrase]; dup {
			return nil, fmt.Errorf("%w: trigger %q already maps to %q", services.ErrConfiguration, phrase, prev)
		}
		seen[phrase] = trig.Operation
		ordered = append(ordered, Trigger{Phrase: phrase, Operation: trig.Operation})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i].Phrase) > utf8.RuneCountInString(ordered[j].Phrase)
	})
	return &Resolver{triggers: ordered}, nil
}

// Resolve returns the operation id for text, or false when no trigger occurs
// in it.
func (r *Resolver) Resolve(text string) (string, bool) {
	trig, ok := r.Match(text)
	return trig.Operation, ok
}

// Match is Resolve but also reports which phrase won.
func (r *Resolver) Match(text string) (Trigger, bool) {
	normalized := normalize(text)
	if normalized == "" || r == nil {
		return Trigger{}, false
	}
	for _, trig := range r.triggers {
		if strings.Contains(normalized, trig.Phrase) {
			return trig, true
		}
	}
	return Trigger{}, false
}

// Triggers returns the table in resolution order.
func (r *Resolver) Triggers() []Trigger {
	if r == nil {
		return nil
	}
	out := make([]Trigger, len(r.triggers))
	copy(out, r.triggers)
	return out
}

// PhrasesFor returns the phrases that resolve to operation, longest first.
func (r *Resolver) PhrasesFor(operation string) []string {
	var phrases []string
	for _, trig := range r.Triggers() {
		if trig.Operation == operation {
			phrases = append(phrases, trig.Phrase)
		}
	}
	return phrases
}

// A Caser keeps state between calls, so each normalization gets its own.
func normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return cases.Lower(language.Und).String(trimmed)
}
