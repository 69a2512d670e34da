package grounding

import (
	"regexp"
	"strings"
)

// Heuristic decides whether a generated answer is suspect — i.e. likely to
// assert something the supplied evidence does not support. It receives the
// original query and the generated text and returns true when the text must
// be replaced with a conservative refusal. The predicate is deliberately
// pluggable so a stricter check (e.g. a model-graded one) can be substituted
// without touching the Composer's control flow.
type Heuristic func(query, answer string) bool

// minSubstantiveLength is the length above which an uncited, non-refusing
// answer is considered "asserting something substantive without grounding".
const minSubstantiveLength = 120

// citationPattern matches the bracketed index tokens the system prompt
// instructs the model to emit when citing a source. Any index counts — the
// evidence cap is a Composer setting, not a property of the text check.
var citationPattern = regexp.MustCompile(`\[\d+\]`)

// refusalPhrases identify answers that legitimately decline instead of
// asserting. An answer containing any of these is never flagged.
var refusalPhrases = []string{
	"i don't know",
	"i do not know",
	"cannot answer",
	"can't answer",
	"not enough information",
	"insufficient information",
	"the sources do not",
	"the sources don't",
	"no information in the provided sources",
}

// deflectionPhrases identify generic non-answers that point the user
// elsewhere instead of answering from the sources.
var deflectionPhrases = []string{
	"please refer to",
	"please consult",
	"please visit",
	"please contact",
	"you should contact",
	"check the official website",
	"refer to the documentation",
	"a professional",
}

// interrogativeMarkers classify a query as "specific": it is asking for a
// concrete fact rather than making conversation.
var interrogativeMarkers = []string{
	"?", "who", "what", "when", "where", "why", "how", "which",
	"wer", "was", "wann", "wo", "warum", "wie", "welche",
}

// DefaultHeuristic flags a generated answer as suspect when either:
//
//  1. it carries no citation marker and no refusal phrasing yet is long
//     enough to be asserting something substantive, or
//  2. the query is specific (interrogative) while the answer merely deflects
//     the user elsewhere.
//
// String matching is inherently fuzzy; this is the reference predicate, not
// the last word.
func DefaultHeuristic(query, answer string) bool {
	lowerAnswer := strings.ToLower(answer)

	cited := citationPattern.MatchString(answer)
	refusing := containsAny(lowerAnswer, refusalPhrases)

	if !cited && !refusing && len(answer) > minSubstantiveLength {
		return true
	}

	if isSpecific(query) && containsAny(lowerAnswer, deflectionPhrases) {
		return true
	}

	return false
}

// isSpecific reports whether the query reads like a concrete question.
func isSpecific(query string) bool {
	lower := strings.ToLower(query)
	for _, m := range interrogativeMarkers {
		if m == "?" {
			if strings.Contains(lower, "?") {
				return true
			}
			continue
		}
		// Word markers must match a whole leading word, not a substring —
		// "showcase" must not read as "how".
		if strings.HasPrefix(lower, m+" ") || lower == m {
			return true
		}
		if strings.Contains(lower, " "+m+" ") {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the given phrases.
func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
