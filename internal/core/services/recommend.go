package services

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// moodGenres holds the genre keywords used to extend the search query.
var moodGenres = map[domain.Mood][]string{
	domain.MoodHappy:     {"pop", "dance pop", "happy", "summer"},
	domain.MoodSad:       {"sad", "acoustic", "emo", "blues", "singer-songwriter"},
	domain.MoodRelaxed:   {"chill", "ambient", "lo-fi", "acoustic", "instrumental", "sleep"},
	domain.MoodEnergetic: {"dance", "electronic", "energy", "rock", "pop punk", "workout"},
	domain.MoodAngry:     {"metal", "hard rock", "punk", "industrial", "rage"},
	domain.MoodFocused:   {"ambient", "instrumental", "focus", "classical", "minimal-techno"},
	domain.MoodRomantic:  {"r-n-b", "soul", "love", "slow jam", "romantic"},
}

// RecommendParams bounds the candidate search.
type RecommendParams struct {
	SearchLimit   int    `koanf:"search_limit" validate:"gte=1,lte=50"`
	Target        int    `koanf:"target" validate:"gte=1"`
	MinPopularity int    `koanf:"min_popularity" validate:"gte=0,lte=100"`
	Market        string `koanf:"market"`
	QueryTags     int    `koanf:"query_tags" validate:"gte=1"`
	QueryGenres   int    `koanf:"query_genres" validate:"gte=0"`
}

// DefaultRecommendParams returns the reference bounds.
func DefaultRecommendParams() RecommendParams {
	return RecommendParams{
		SearchLimit:   50,
		Target:        40,
		MinPopularity: 7,
		Market:        "from_token",
		QueryTags:     2,
		QueryGenres:   2,
	}
}

// Recommender finds catalog tracks outside the user's library.
type Recommender struct {
	catalog ports.CatalogProvider
	history ports.HistoryStore
	params  RecommendParams
	logger  *zap.Logger
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewRecommender constructs a Recommender.
func NewRecommender(catalog ports.CatalogProvider, history ports.HistoryStore, params RecommendParams, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		catalog: catalog,
		history: history,
		params:  params,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

// BuildQuery joins the leading mood tags with up to QueryGenres of the
// user's genres that contain a mood genre keyword.
func (r *Recommender) BuildQuery(weights domain.MoodTagWeights, userGenres []string, mood domain.Mood) string {
	parts := make([]string, 0, r.params.QueryTags+r.params.QueryGenres)
	for _, tag := range weights.Primary(r.params.QueryTags) {
		if tag != "" {
			parts = append(parts, tag)
		}
	}

	found := 0
	if len(userGenres) > 0 && r.params.QueryGenres > 0 {
		for _, keyword := range moodGenres[mood] {
			matched := ""
			for _, g := range userGenres {
				if strings.Contains(g, keyword) {
					matched = g
					break
				}
			}
			if matched == "" || contains(parts, matched) {
				continue
			}
			parts = append(parts, matched)
			found++
			if found >= r.params.QueryGenres {
				break
			}
		}
	}

	return strings.Join(parts, " ")
}

// Recommend searches the catalog and filters out library tracks, previously
// recommended tracks and duplicates. Accepted ids are merged into history,
// which is persisted. The returned history is the merged one; the returned
// candidates are shuffled.
func (r *Recommender) Recommend(ctx context.Context, weights domain.MoodTagWeights, userGenres []string, mood domain.Mood, library map[string]struct{}, history domain.History) ([]domain.Track, domain.History) {
	query := r.BuildQuery(weights, userGenres, mood)
	if query == "" {
		r.logger.Warn("recommender: could not build a search query")
		return nil, history
	}

	results, err := r.catalog.SearchTracks(ctx, query, ports.SearchOptions{
		Limit:  r.params.SearchLimit,
		Market: r.params.Market,
	})
	if err != nil {
		r.logger.Warn("recommender: search failed", zap.String("query", query), zap.Error(err))
		return nil, history
	}

	previous := history.Set()
	queryTags := weights.Primary(r.params.QueryTags)
	chosen := make(map[string]struct{})
	candidates := make([]domain.Track, 0, r.params.Target)
	for i, t := range results {
		if i >= r.params.SearchLimit || len(candidates) >= r.params.Target {
			break
		}
		if t.ID == "" {
			continue
		}
		if _, ok := library[t.ID]; ok {
			continue
		}
		if _, ok := previous[t.ID]; ok {
			continue
		}
		if _, ok := chosen[t.ID]; ok {
			continue
		}
		pop := 0
		if t.Popularity != nil {
			pop = *t.Popularity
		}
		if pop < r.params.MinPopularity {
			continue
		}

		c := t.WithTags(queryTags)
		c.Source = domain.SourceSearch
		candidates = append(candidates, c)
		chosen[t.ID] = struct{}{}
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	updated := history.Merge(ids, r.now())
	if err := r.history.Save(ctx, updated); err != nil {
		r.logger.Error("recommender: failed to save history", zap.Error(err))
	}

	r.shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	r.logger.Info("recommender: candidates ready",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Int("accepted", len(candidates)))

	return candidates, updated
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
