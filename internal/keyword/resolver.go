// Package keyword maps free-text search input to canonical category labels.
//
// A Dictionary is built once at startup from alias entries and is read-only
// afterwards, so a single instance is shared by every request.
package keyword

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Scoring constants for candidate matches. A direct hit always outranks an
// alias hit regardless of alias length or priority.
const (
	directHitBase = 1000
	aliasHitBase  = 500
	aliasLenScale = 10
)

// MatchKind describes how a label was resolved.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchDirect
	MatchAlias
)

// String returns the metric label for the match kind.
func (k MatchKind) String() string {
	switch k {
	case MatchDirect:
		return "direct"
	case MatchAlias:
		return "alias"
	default:
		return "none"
	}
}

// AliasEntry maps input variants to a canonical label.
type AliasEntry struct {
	Label    string   `koanf:"label"`
	Aliases  []string `koanf:"aliases"`
	Priority int      `koanf:"priority"`
}

// Resolution is the outcome of resolving one search input.
// Label is empty when no canonical label matched; Remainder then holds the
// whole trimmed input so it can be used as free text.
type Resolution struct {
	Label     string
	Remainder string
	Kind      MatchKind
}

// Matched reports whether a canonical label was found.
func (r Resolution) Matched() bool {
	return r.Kind != MatchNone
}

type aliasTarget struct {
	label    string
	priority int
	length   int
}

// Dictionary is an immutable alias lookup table.
type Dictionary struct {
	aliases map[string]aliasTarget
}

// NewDictionary builds a lookup table from entries. Every alias and every
// canonical label is indexed by its normalized form. When two entries claim
// the same key the longer alias wins, then the higher priority, then the
// entry seen first.
func NewDictionary(entries []AliasEntry) *Dictionary {
	d := &Dictionary{aliases: make(map[string]aliasTarget)}
	for _, e := range entries {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			continue
		}
		d.add(label, label, e.Priority)
		for _, alias := range e.Aliases {
			d.add(alias, label, e.Priority)
		}
	}
	return d
}

func (d *Dictionary) add(alias, label string, priority int) {
	key := Normalize(alias)
	if key == "" {
		return
	}
	candidate := aliasTarget{label: label, priority: priority, length: utf8.RuneCountInString(key)}
	existing, ok := d.aliases[key]
	if !ok || candidate.length > existing.length ||
		(candidate.length == existing.length && candidate.priority > existing.priority) {
		d.aliases[key] = candidate
	}
}

// Len returns the number of indexed alias keys.
func (d *Dictionary) Len() int {
	return len(d.aliases)
}

// Resolve extracts at most one canonical label from raw. Only labels present
// in available are ever returned. The matched token is removed exactly once
// and the remaining normalized tokens are returned as Remainder.
//
// Resolve is meant to run once per submitted search, not per keystroke.
func (d *Dictionary) Resolve(raw string, available []string) Resolution {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Resolution{}
	}
	if len(available) == 0 {
		return Resolution{Remainder: trimmed}
	}

	labels := make(map[string]string, len(available))
	for _, l := range available {
		if n := Normalize(l); n != "" {
			labels[n] = l
		}
	}
	allowed := make(map[string]bool, len(available))
	for _, l := range available {
		allowed[l] = true
	}

	tokens := strings.Fields(Normalize(trimmed))

	best := -1
	bestScore := 0
	var bestLabel string
	var bestKind MatchKind
	for i, token := range tokens {
		if label, ok := labels[token]; ok {
			if score := directHitBase + utf8.RuneCountInString(token); score > bestScore {
				best, bestScore, bestLabel, bestKind = i, score, label, MatchDirect
			}
			continue
		}
		if d == nil {
			continue
		}
		target, ok := d.aliases[token]
		if !ok || !allowed[target.label] {
			continue
		}
		if score := aliasHitBase + target.length*aliasLenScale + target.priority; score > bestScore {
			best, bestScore, bestLabel, bestKind = i, score, target.label, MatchAlias
		}
	}

	if best < 0 {
		return Resolution{Remainder: trimmed}
	}

	rest := make([]string, 0, len(tokens)-1)
	rest = append(rest, tokens[:best]...)
	rest = append(rest, tokens[best+1:]...)
	return Resolution{
		Label:     bestLabel,
		Remainder: strings.Join(rest, " "),
		Kind:      bestKind,
	}
}

// Normalize folds full-width characters to their narrow forms, lowercases,
// and collapses runs of whitespace to single spaces.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "　", " ")
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
