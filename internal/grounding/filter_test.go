package grounding

import (
	"testing"

	"github.com/sentinelai/sentinel-go/internal/rag"
)

// scored builds a ScoredChunk with just the fields the filter cares about.
func scored(id string, score float32) rag.ScoredChunk {
	return rag.ScoredChunk{Chunk: rag.Chunk{ID: id, Title: id, Content: "content " + id}, Score: score}
}

func TestFilter_ThresholdSplitsCandidates(t *testing.T) {
	t.Parallel()

	candidates := []rag.ScoredChunk{scored("a", 0.9), scored("b", 0.5)}

	qualifying, maxScore := Filter(candidates, 0.7)

	if maxScore != 0.9 {
		t.Errorf("expected max_score 0.9, got %v", maxScore)
	}
	if len(qualifying) != 1 || qualifying[0].ID != "a" {
		t.Fatalf("expected only candidate a to qualify, got %v", qualifying)
	}
}

func TestFilter_EmptyCandidatesYieldSentinelZero(t *testing.T) {
	t.Parallel()

	qualifying, maxScore := Filter(nil, 0.7)

	if maxScore != 0.0 {
		t.Errorf("expected sentinel max_score 0.0, got %v", maxScore)
	}
	if len(qualifying) != 0 {
		t.Errorf("expected no qualifying candidates, got %d", len(qualifying))
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	t.Parallel()

	candidates := []rag.ScoredChunk{
		scored("first", 0.9), scored("second", 0.8), scored("third", 0.8), scored("out", 0.1),
	}

	qualifying, _ := Filter(candidates, 0.5)

	want := []string{"first", "second", "third"}
	if len(qualifying) != len(want) {
		t.Fatalf("expected %d qualifying, got %d", len(want), len(qualifying))
	}
	for i, id := range want {
		if qualifying[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, qualifying[i].ID)
		}
	}
}

func TestFilter_ExactThresholdQualifies(t *testing.T) {
	t.Parallel()

	qualifying, _ := Filter([]rag.ScoredChunk{scored("edge", 0.7)}, 0.7)

	if len(qualifying) != 1 {
		t.Fatal("expected candidate at exactly min_score to qualify")
	}
}

func TestFilter_MaxScoreIsFirstCandidateEvenWhenNoneQualify(t *testing.T) {
	t.Parallel()

	qualifying, maxScore := Filter([]rag.ScoredChunk{scored("a", 0.4), scored("b", 0.3)}, 0.7)

	if maxScore != 0.4 {
		t.Errorf("expected max_score 0.4, got %v", maxScore)
	}
	if len(qualifying) != 0 {
		t.Errorf("expected no qualifying candidates, got %d", len(qualifying))
	}
}
