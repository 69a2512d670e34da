package grounding

import (
	"strings"
	"testing"
)

func TestDefaultHeuristic_UncitedSubstantiveAnswerIsSuspect(t *testing.T) {
	t.Parallel()

	// 150 characters, no citation markers, no refusal phrasing.
	answer := strings.Repeat("The firewall drops all inbound traffic by default. ", 3)
	if len(answer) <= minSubstantiveLength {
		t.Fatalf("test answer too short: %d", len(answer))
	}

	if !DefaultHeuristic("what does the firewall do", answer) {
		t.Error("expected long uncited answer to be flagged")
	}
}

func TestDefaultHeuristic_CitedAnswerIsAccepted(t *testing.T) {
	t.Parallel()

	answer := strings.Repeat("The firewall drops all inbound traffic by default [1]. ", 3)

	if DefaultHeuristic("what does the firewall do", answer) {
		t.Error("expected cited answer to pass")
	}
}

func TestDefaultHeuristic_HighIndexCitationIsAccepted(t *testing.T) {
	t.Parallel()

	// Citation indexes beyond 3 occur when the composer is configured with a
	// larger evidence cap; they count as citations all the same.
	answer := strings.Repeat("The firewall drops all inbound traffic by default [4]. ", 3)

	if DefaultHeuristic("what does the firewall do", answer) {
		t.Error("expected answer citing a high source index to pass")
	}
}

func TestDefaultHeuristic_RefusalIsAccepted(t *testing.T) {
	t.Parallel()

	answer := "I don't know based on the available sources. The supplied material covers firewall basics but " +
		"says nothing about the specific appliance model you are asking about, so answering would be guessing."

	if DefaultHeuristic("which appliance model is deployed?", answer) {
		t.Error("expected explicit refusal to pass even when long and uncited")
	}
}

func TestDefaultHeuristic_ShortUncitedAnswerIsAccepted(t *testing.T) {
	t.Parallel()

	if DefaultHeuristic("what is TLS", "TLS is transport encryption.") {
		t.Error("expected short answer below the length threshold to pass")
	}
}

func TestDefaultHeuristic_SpecificQueryGenericAnswerIsSuspect(t *testing.T) {
	t.Parallel()

	answer := "Please refer to the official website for details [1]."

	if !DefaultHeuristic("when does the course start?", answer) {
		t.Error("expected deflecting answer to a specific question to be flagged")
	}
}

func TestDefaultHeuristic_DeflectionOnNonQuestionIsAccepted(t *testing.T) {
	t.Parallel()

	answer := "Please refer to the official website [1]."

	if DefaultHeuristic("tell me about courses", answer) {
		t.Error("expected deflection to pass when the query is not specific")
	}
}

func TestIsSpecific_WordBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		want  bool
	}{
		{"how do I enroll", true},
		{"is it available?", true},
		{"tell me when the course starts", true},
		{"the showcase event", false},
		{"general information", false},
	}

	for _, tc := range cases {
		if got := isSpecific(tc.query); got != tc.want {
			t.Errorf("isSpecific(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}
