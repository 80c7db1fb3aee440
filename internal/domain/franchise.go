package domain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

//go:embed franchises.json
var franchisesJSON []byte

var splitWords = regexp.MustCompile(`[\s-]+`)

// FranchiseMatcher decides whether a place name belongs to a known
// chain brand. The reference set is normalized once at construction and
// read-only afterwards, so a single matcher is safe to share across
// requests.
type FranchiseMatcher struct {
	franchises []franchiseEntry
}

type franchiseEntry struct {
	normalized string
	// possessive is the normalized name with a trailing 's stripped,
	// e.g. "mcdonald's" → "mcdonald". Used for prefix matching against
	// candidate tokens so "McDonalds Coffee Corner" still matches.
	possessive string
}

// NewFranchiseMatcher builds a matcher over the given franchise names.
// Names are matched case- and whitespace-insensitively.
func NewFranchiseMatcher(names []string) *FranchiseMatcher {
	m := &FranchiseMatcher{franchises: make([]franchiseEntry, 0, len(names))}
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		m.franchises = append(m.franchises, franchiseEntry{
			normalized: normalized,
			possessive: strings.Replace(normalized, "'s", "", 1),
		})
	}
	return m
}

// DefaultFranchiseMatcher loads the embedded chain-brand list.
func DefaultFranchiseMatcher() (*FranchiseMatcher, error) {
	var names []string
	if err := json.Unmarshal(franchisesJSON, &names); err != nil {
		return nil, fmt.Errorf("parse embedded franchise list: %w", err)
	}
	return NewFranchiseMatcher(names), nil
}

// IsFranchise reports whether the single candidate name matches any
// franchise in the reference set. An empty name never matches.
//
// A candidate matches when any of these holds:
//   - exact normalized equality;
//   - the franchise appears as a bounded substring, surrounded by
//     spaces or the start/end of the candidate;
//   - the possessive-stripped franchise is a prefix of any candidate
//     word (split on whitespace and hyphens).
func (m *FranchiseMatcher) IsFranchise(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return false
	}
	words := splitWords.Split(normalized, -1)

	for _, f := range m.franchises {
		if normalized == f.normalized {
			return true
		}
		if strings.Contains(normalized, " "+f.normalized+" ") ||
			strings.HasPrefix(normalized, f.normalized+" ") ||
			strings.HasSuffix(normalized, " "+f.normalized) {
			return true
		}
		for _, word := range words {
			if strings.HasPrefix(word, f.possessive) {
				return true
			}
		}
	}
	return false
}

// MatchesAny reports whether any of the candidate names matches a
// franchise. Callers pass every name variant available for a place.
func (m *FranchiseMatcher) MatchesAny(names []string) bool {
	for _, name := range names {
		if m.IsFranchise(name) {
			return true
		}
	}
	return false
}
