package services

import (
	"math"
	"testing"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// TestScorer_ScoreTags verifies the combined score and penalty arithmetic.
func TestScorer_ScoreTags(t *testing.T) {
	s := NewScorer(DefaultScoringParams())
	weights := map[string]float64{"happy": 1.0, "upbeat": 0.5, "pop": 0.25, "sad": 0.4}

	tests := []struct {
		name          string
		tags          []string
		mood          domain.Mood
		wantMatches   int
		wantBest      float64
		wantPenalized bool
		wantFinal     float64
	}{
		{
			name:        "single strong match",
			tags:        []string{"happy"},
			mood:        domain.MoodHappy,
			wantMatches: 1,
			wantBest:    1.0,
			wantFinal:   1.0*(1+0.5*math.Log1p(1)) + 0.2*1.0,
		},
		{
			name:        "duplicates count once",
			tags:        []string{"happy", "happy", "unknown"},
			mood:        domain.MoodHappy,
			wantMatches: 1,
			wantBest:    1.0,
			wantFinal:   1.0*(1+0.5*math.Log1p(1)) + 0.2*1.0,
		},
		{
			name:          "negative tag penalty",
			tags:          []string{"upbeat", "sad"},
			mood:          domain.MoodHappy,
			wantMatches:   2,
			wantBest:      0.5,
			wantPenalized: true,
			wantFinal:     (0.9*(1+0.5*math.Log1p(2)) + 0.2*0.5) * 0.15,
		},
		{
			name:        "focused has no negative table",
			tags:        []string{"upbeat", "sad"},
			mood:        domain.MoodFocused,
			wantMatches: 2,
			wantBest:    0.5,
			wantFinal:   0.9*(1+0.5*math.Log1p(2)) + 0.2*0.5,
		},
		{
			name:        "no match",
			tags:        []string{"metal"},
			mood:        domain.MoodHappy,
			wantMatches: 0,
			wantFinal:   0,
		},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			got := s.ScoreTags(tc.tags, weights, tc.mood)
			if got.Matches != tc.wantMatches {
				t.Fatalf("Matches = %d, want %d", got.Matches, tc.wantMatches)
			}
			if got.Best != tc.wantBest {
				t.Fatalf("Best = %v, want %v", got.Best, tc.wantBest)
			}
			if got.Penalized != tc.wantPenalized {
				t.Fatalf("Penalized = %v, want %v", got.Penalized, tc.wantPenalized)
			}
			if math.Abs(got.Final-tc.wantFinal) > 1e-9 {
				t.Fatalf("Final = %v, want %v", got.Final, tc.wantFinal)
			}
		})
	}
}

// TestScorer_MonotonicInMatches verifies more matched tags never lower the score
// when the best weight is unchanged.
func TestScorer_MonotonicInMatches(t *testing.T) {
	s := NewScorer(DefaultScoringParams())
	weights := map[string]float64{"a": 1.0, "b": 0.1, "c": 0.05, "d": 0.01}

	prev := -1.0
	tags := []string{}
	for _, tag := range []string{"a", "b", "c", "d"} {
		tags = append(tags, tag)
		got := s.ScoreTags(tags, weights, domain.MoodNeutral)
		if got.Best != 1.0 {
			t.Fatalf("Best = %v, want 1.0", got.Best)
		}
		if got.Final < prev {
			t.Fatalf("score dropped from %v to %v at %d matches", prev, got.Final, len(tags))
		}
		prev = got.Final
	}
}

// TestScorer_Score verifies filtering, the happy-vs-sad scenario and ordering.
func TestScorer_Score(t *testing.T) {
	s := NewScorer(DefaultScoringParams())
	weights := MapEmotions(domain.EmotionProfile{"joy": 0.8, "sadness": 0.1, "calmness": 0.1})
	index := weights.Index()

	sadTrack := domain.Track{ID: "sad", Name: "Tears", Artists: []string{"A"}}.WithTags([]string{"sad", "acoustic"})
	tracks := []domain.Track{
		domain.Track{ID: "best", Name: "Sun", Artists: []string{"B"}}.WithTags([]string{"happy", "upbeat", "party"}),
		domain.Track{ID: "ok", Name: "Pop", Artists: []string{"C"}}.WithTags([]string{"pop"}),
		sadTrack,
		domain.Track{ID: "empty", Name: "Silence", Artists: []string{"D"}}.WithTags([]string{}),
		{ID: "untagged", Name: "Raw", Artists: []string{"E"}},
		domain.Track{ID: "", Name: "Ghost", Artists: []string{"F"}}.WithTags([]string{"happy"}),
	}

	got := s.Score(tracks, weights, domain.MoodHappy)

	ids := make(map[string]float64)
	for i, tr := range got {
		if !tr.Scored() {
			t.Fatalf("track %q returned without a score", tr.ID)
		}
		if i > 0 && tr.Score() > got[i-1].Score() {
			t.Fatalf("results not sorted descending at %d", i)
		}
		ids[tr.ID] = tr.Score()
	}
	for _, excluded := range []string{"empty", "untagged", ""} {
		if _, ok := ids[excluded]; ok {
			t.Fatalf("track %q must be excluded", excluded)
		}
	}
	if got[0].ID != "best" {
		t.Fatalf("first track = %q, want best", got[0].ID)
	}

	ts := s.ScoreTags(sadTrack.TagList(), index, domain.MoodHappy)
	if !ts.Penalized {
		t.Fatalf("sad track against happy mood must be penalized")
	}
	if ts.Final > 0.15*ts.Combined+1e-9 {
		t.Fatalf("penalized score %v exceeds 15%% of %v", ts.Final, ts.Combined)
	}
	if score, ok := ids["sad"]; ok && score > 0.15*ts.Combined+1e-9 {
		t.Fatalf("sad track score %v not reduced", score)
	}
}

// TestScorer_EmptyWeights verifies nothing is scored without a weight table.
func TestScorer_EmptyWeights(t *testing.T) {
	s := NewScorer(DefaultScoringParams())
	tracks := []domain.Track{domain.Track{ID: "t1", Artists: []string{"A"}}.WithTags([]string{"happy"})}
	if got := s.Score(tracks, nil, domain.MoodHappy); len(got) != 0 {
		t.Fatalf("Score() = %v, want empty", got)
	}
}
