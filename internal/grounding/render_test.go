package grounding

import (
	"strings"
	"testing"
)

func TestWrap_BreaksAtWidth(t *testing.T) {
	t.Parallel()

	got := Wrap("one two three four five", 9)

	for _, line := range strings.Split(got, "\n") {
		if len(line) > 9 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
	if !strings.Contains(got, "\n") {
		t.Error("expected at least one line break")
	}
}

func TestWrap_LongWordIsNotBroken(t *testing.T) {
	t.Parallel()

	got := Wrap("supercalifragilistic", 5)
	if got != "supercalifragilistic" {
		t.Errorf("expected oversized word unbroken, got %q", got)
	}
}

func TestWrap_ZeroWidthReturnsInput(t *testing.T) {
	t.Parallel()

	if got := Wrap("a b c", 0); got != "a b c" {
		t.Errorf("expected input unchanged, got %q", got)
	}
}

func TestRenderConsole_BlockedAndRefusals(t *testing.T) {
	t.Parallel()

	if got := RenderConsole(&Answer{Kind: KindBlocked}, 100); got != "Security notice: query blocked." {
		t.Errorf("unexpected blocked rendering: %q", got)
	}
	for _, kind := range []Kind{KindUnknown, KindInsufficientEvidence, KindNoConcreteContent} {
		if got := RenderConsole(&Answer{Kind: kind}, 100); got != RefusalText {
			t.Errorf("kind %s: expected refusal text, got %q", kind, got)
		}
	}
}

func TestRenderConsole_GroundedListsEvidenceWithProvenance(t *testing.T) {
	t.Parallel()

	ans := &Answer{
		Kind: KindGrounded,
		Text: "The course starts in March [1].",
		Evidence: []Evidence{
			{Title: "Course dates", Excerpt: "Enrollment opens in March.", Source: "generated:doc-courses", DocID: "doc-courses", ChunkID: 2},
			{Title: "Untracked", Excerpt: "No provenance recorded."},
		},
	}

	got := RenderConsole(ans, 100)

	for _, want := range []string{
		"[1] Course dates",
		"Source: generated:doc-courses | doc_id=doc-courses | chunk=2",
		"[2] Untracked",
		"Source: - | doc_id=- | chunk=0",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected rendering to contain %q, got:\n%s", want, got)
		}
	}
}
