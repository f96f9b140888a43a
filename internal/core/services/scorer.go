package services

import (
	"math"
	"sort"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// ScoringParams holds the tunable constants of the mood score.
type ScoringParams struct {
	QuantityBonus  float64 `koanf:"quantity_bonus" validate:"gte=0"`
	RelevanceBonus float64 `koanf:"relevance_bonus" validate:"gte=0"`
	Penalty        float64 `koanf:"penalty" validate:"gte=0,lte=1"`
	Threshold      float64 `koanf:"threshold" validate:"gte=0"`
}

// DefaultScoringParams returns the reference tuning.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		QuantityBonus:  0.5,
		RelevanceBonus: 0.2,
		Penalty:        0.85,
		Threshold:      0.05,
	}
}

// negativeTags maps a mood to tags that contradict it. Moods absent here
// receive no penalty.
var negativeTags = map[domain.Mood]map[string]struct{}{
	domain.MoodHappy:     setOf("sad", "melancholy", "melancholic", "depressing", "heartbreak", "angry", "rage", "somber"),
	domain.MoodSad:       setOf("happy", "joyful", "party", "upbeat", "celebratory", "cheerful"),
	domain.MoodRelaxed:   setOf("angry", "rage", "intense", "aggressive", "party", "loud", "fast tempo", "chaotic"),
	domain.MoodEnergetic: setOf("calm", "relaxing", "mellow", "sleep", "slow tempo", "peaceful", "somber"),
	domain.MoodAngry:     setOf("happy", "joyful", "calm", "relaxing", "peaceful", "cheerful", "love", "romantic"),
	domain.MoodRomantic:  setOf("angry", "rage", "aggressive", "hate", "breakup", "platonic"),
}

func setOf(items ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Scorer ranks enriched library tracks against a mood tag table.
type Scorer struct {
	params ScoringParams
}

// NewScorer constructs a Scorer.
func NewScorer(params ScoringParams) *Scorer {
	return &Scorer{params: params}
}

// TagScore is the breakdown of one track's score.
type TagScore struct {
	Base      float64
	Matches   int
	Best      float64
	Combined  float64
	Penalized bool
	Final     float64
}

// ScoreTags computes the score of a tag set. Matches is zero when no tag is
// in the weight table.
func (s *Scorer) ScoreTags(tags []string, weights map[string]float64, mood domain.Mood) TagScore {
	var ts TagScore
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		w, ok := weights[tag]
		if !ok {
			continue
		}
		ts.Base += w
		ts.Matches++
		if w > ts.Best {
			ts.Best = w
		}
	}
	if ts.Matches == 0 {
		return ts
	}

	ts.Combined = ts.Base*(1+s.params.QuantityBonus*math.Log1p(float64(ts.Matches))) + s.params.RelevanceBonus*ts.Best
	ts.Final = ts.Combined

	if neg, ok := negativeTags[mood]; ok {
		for tag := range seen {
			if _, hit := neg[tag]; hit {
				ts.Penalized = true
				ts.Final *= 1 - s.params.Penalty
				break
			}
		}
	}
	return ts
}

// Score returns the tracks that clear the threshold, each carrying its
// score, best first. Tracks without an id, never enriched, with no tags, or
// with no matching tag are dropped.
func (s *Scorer) Score(tracks []domain.Track, weights domain.MoodTagWeights, mood domain.Mood) []domain.Track {
	if len(weights) == 0 {
		return nil
	}
	index := weights.Index()

	scored := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || !t.Enriched() || len(t.TagList()) == 0 {
			continue
		}
		ts := s.ScoreTags(t.TagList(), index, mood)
		if ts.Matches == 0 {
			continue
		}
		if ts.Final > s.params.Threshold {
			scored = append(scored, t.WithScore(ts.Final))
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score() > scored[j].Score()
	})
	return scored
}
