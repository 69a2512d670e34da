// Package guard implements the keyword guard that screens queries before any
// external collaborator is called. Blocking is a pure substring check over a
// fixed denylist — denylisted content must never reach the embedding or
// generation services, and a blocked query must cost nothing.
package guard

import "strings"

// DefaultDenylist contains the security-sensitive terms blocked by default.
// Matching is case-insensitive substring containment.
var DefaultDenylist = []string{
	"password",
	"admin access",
	"bypass",
	"prompt injection",
}

// Guard screens query text against an immutable denylist. The zero value
// blocks nothing; construct via New. Safe for concurrent use — the denylist
// is never mutated after construction.
type Guard struct {
	// terms holds the lower-cased denylist terms.
	terms []string
}

// New constructs a Guard over the given denylist. Terms are lower-cased at
// construction so Check only folds the input. A nil or empty denylist yields
// a guard that allows everything — this is how override mode is expressed:
// the denylist is treated as empty, never partially applied.
func New(denylist []string) *Guard {
	terms := make([]string, 0, len(denylist))
	for _, t := range denylist {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return &Guard{terms: terms}
}

// Result is the outcome of a guard check.
type Result struct {
	// Blocked is true when the text matched a denylisted term.
	Blocked bool

	// Term is the denylist entry that matched. Empty when allowed.
	Term string
}

// Check screens text against the denylist. It is a pure predicate with no
// side effects: the text is lower-cased and each denylist term is tested for
// substring containment. The first matching term is reported.
func (g *Guard) Check(text string) Result {
	lower := strings.ToLower(text)
	for _, term := range g.terms {
		if strings.Contains(lower, term) {
			return Result{Blocked: true, Term: term}
		}
	}
	return Result{}
}
