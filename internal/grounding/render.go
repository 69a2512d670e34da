package grounding

import (
	"fmt"
	"strings"
)

// DefaultWrapColumns is the console line width used when none is configured.
const DefaultWrapColumns = 100

// RenderConsole formats an Answer for the interactive console. Refusals
// render as a single line; grounded answers render the answer text followed
// by the cited evidence with provenance, content wrapped at wrapCols.
func RenderConsole(a *Answer, wrapCols int) string {
	if wrapCols <= 0 {
		wrapCols = DefaultWrapColumns
	}

	switch a.Kind {
	case KindBlocked:
		return "Security notice: query blocked."
	case KindUnknown, KindInsufficientEvidence, KindNoConcreteContent:
		return RefusalText
	}

	var sb strings.Builder
	if a.Text != "" {
		sb.WriteString(Wrap(a.Text, wrapCols))
		sb.WriteString("\n\n")
	}
	for i, ev := range a.Evidence {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, ev.Title)
		if ev.Excerpt != "" {
			sb.WriteString(Wrap(ev.Excerpt, wrapCols))
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Source: %s | doc_id=%s | chunk=%d\n\n",
			orDash(ev.Source), orDash(ev.DocID), ev.ChunkID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Wrap greedily wraps text at the given column width, breaking on spaces.
// Words longer than the width are emitted on their own line unbroken.
// Existing newlines are respected.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}

		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// orDash substitutes "-" for empty provenance fields, mirroring what the
// console shows for chunks ingested without full metadata.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
