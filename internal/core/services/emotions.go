package services

import (
	"sort"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// nearZeroMood is the category score below which the profile is treated as flat.
const nearZeroMood = 0.01

// moodCategories lists the emotions that make up each mood, in evaluation order.
var moodCategories = []struct {
	mood     domain.Mood
	emotions []string
}{
	{domain.MoodHappy, []string{"joy", "excitement", "amusement", "satisfaction"}},
	{domain.MoodSad, []string{"sadness", "empathic pain", "nostalgia"}},
	{domain.MoodRelaxed, []string{"calmness", "relief", "satisfaction"}},
	{domain.MoodEnergetic, []string{"excitement", "surprise", "entrancement"}},
	{domain.MoodAngry, []string{"anger", "disgust", "fear"}},
	{domain.MoodFocused, []string{"interest", "entrancement", "awe"}},
	{domain.MoodRomantic, []string{"romance", "adoration", "aesthetic appreciation"}},
}

var romanceTags = []string{"love", "romantic", "sensual", "sexy", "smooth", "ballad", "r&b", "soul", "slow jam", "intimate"}

// emotionTags maps classifier labels to search tags. "romantic" is accepted
// as an alias of the classifier's "romance" label.
var emotionTags = map[string][]string{
	"joy":           {"happy", "upbeat", "joyful", "energetic", "party", "summer", "feel-good", "uplifting", "celebratory", "pop", "dance"},
	"sadness":       {"sad", "melancholy", "melancholic", "emotional", "heartbreak", "lonely", "mellow", "somber", "reflective", "ballad", "blues", "acoustic"},
	"anger":         {"angry", "rage", "intense", "aggressive", "heavy", "metal", "hard rock", "punk", "industrial", "protest"},
	"excitement":    {"upbeat", "energetic", "party", "dance", "happy", "uplifting", "driving", "fast tempo", "anthem", "electronic", "rock"},
	"fear":          {"dark", "scary", "intense", "atmospheric", "suspenseful", "horror", "dissonant", "eerie", "anxious", "ambient"},
	"anxiety":       {"tense", "atmospheric", "dark", "experimental", "intense", "lo-fi", "uneasy", "minimal", "ambient"},
	"empathic pain": {"emotional", "sad", "touching", "heartbreak", "ballad", "acoustic", "soulful", "moving"},
	"nostalgia":     {"nostalgic", "80s", "90s", "classic rock", "retro", "memories", "vintage", "oldies", "synthwave"},
	"calmness":      {"calm", "relaxing", "mellow", "chill", "ambient", "peaceful", "sleep", "lo-fi", "acoustic", "instrumental", "new age"},
	"awe":           {"epic", "atmospheric", "beautiful", "orchestral", "cinematic", "soundtrack", "grandiose", "majestic", "post-rock"},
	"romance":       romanceTags,
	"romantic":      romanceTags,
	"satisfaction":  {"groove", "feel-good", "catchy", "summer", "pleasant", "pop", "funk", "soul", "chillwave", "content"},
}

// DominantMood reduces a profile to one mood. Each category scores the max of
// its emotions and the highest category wins. When every category is below
// 0.01 the category holding the single top emotion wins instead, else neutral.
func DominantMood(emotions domain.EmotionProfile) domain.Mood {
	if len(emotions) == 0 {
		return domain.MoodNeutral
	}

	best := domain.MoodNeutral
	bestScore := -1.0
	allNearZero := true
	for _, cat := range moodCategories {
		catMax := 0.0
		for _, e := range cat.emotions {
			if s := emotions[e]; s > catMax {
				catMax = s
			}
		}
		if catMax >= nearZeroMood {
			allNearZero = false
		}
		if catMax > bestScore {
			best, bestScore = cat.mood, catMax
		}
	}

	if !allNearZero {
		return best
	}

	top, _, ok := topEmotion(emotions)
	if !ok {
		return domain.MoodNeutral
	}
	for _, cat := range moodCategories {
		for _, e := range cat.emotions {
			if e == top {
				return cat.mood
			}
		}
	}
	return domain.MoodNeutral
}

// MapEmotions builds the mood tag table for a profile. Tags are ordered by
// accumulated weight, where each emotion contributes score×multiplier: 2.0
// for the dominant emotion, 1.5 above 40% of the dominant score, else 1.0.
// The returned weights are rank-derived.
func MapEmotions(emotions domain.EmotionProfile) domain.MoodTagWeights {
	dominant, dominantScore, ok := topEmotion(emotions)
	if !ok {
		return domain.MoodTagWeights{}
	}

	acc := make(map[string]float64)
	seen := make(map[string]bool)
	var tags []string
	for _, emotion := range rankedEmotions(emotions) {
		score := emotions[emotion]
		if score <= 0 {
			continue
		}
		multiplier := 1.0
		switch {
		case emotion == dominant:
			multiplier = 2.0
		case score > dominantScore*0.4:
			multiplier = 1.5
		}
		for _, tag := range emotionTags[emotion] {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
			acc[tag] += score * multiplier
		}
	}

	// Equal weights keep first-seen order, so the dominant emotion's own
	// table order survives.
	sort.SliceStable(tags, func(i, j int) bool {
		return acc[tags[i]] > acc[tags[j]]
	})

	return domain.NewMoodTagWeights(tags)
}

// rankedEmotions orders emotion names by descending score, then name.
func rankedEmotions(emotions domain.EmotionProfile) []string {
	names := make([]string, 0, len(emotions))
	for e := range emotions {
		names = append(names, e)
	}
	sort.Slice(names, func(i, j int) bool {
		if emotions[names[i]] != emotions[names[j]] {
			return emotions[names[i]] > emotions[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// topEmotion returns the highest-scoring emotion; ties go to the
// alphabetically first name so the result is deterministic.
func topEmotion(emotions domain.EmotionProfile) (string, float64, bool) {
	name := ""
	score := 0.0
	found := false
	for e, s := range emotions {
		if !found || s > score || (s == score && e < name) {
			name, score, found = e, s, true
		}
	}
	return name, score, found
}
