package domain

import "strings"

// EmotionProfile maps an emotion name to a confidence in [0,1].
// Values are relative; nothing relies on them summing to 1.
type EmotionProfile map[string]float64

// Mood is the coarse category a profile is reduced to.
type Mood string

const (
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodRelaxed   Mood = "relaxed"
	MoodEnergetic Mood = "energetic"
	MoodAngry     Mood = "angry"
	MoodFocused   Mood = "focused"
	MoodRomantic  Mood = "romantic"
	MoodNeutral   Mood = "neutral"
)

// Moods lists every valid mood in a stable order.
var Moods = []Mood{
	MoodHappy, MoodSad, MoodRelaxed, MoodEnergetic,
	MoodAngry, MoodFocused, MoodRomantic, MoodNeutral,
}

// Valid reports whether m is one of the closed set.
func (m Mood) Valid() bool {
	for _, v := range Moods {
		if v == m {
			return true
		}
	}
	return false
}

// Title returns the mood with its first letter upper-cased, e.g. "Happy".
func (m Mood) Title() string {
	s := string(m)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseMood returns the mood for s, falling back to neutral.
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return MoodNeutral
}

// MoodTag is one entry of a mood weight table.
type MoodTag struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
}

// MoodTagWeights is ordered highest weight first and unique by tag.
type MoodTagWeights []MoodTag

// NewMoodTagWeights derives rank weights (n-i)/n from an ordered tag list.
// Later duplicates are dropped so the table stays unique by tag.
func NewMoodTagWeights(tags []string) MoodTagWeights {
	unique := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		unique = append(unique, tag)
	}

	n := float64(len(unique))
	out := make(MoodTagWeights, len(unique))
	for i, tag := range unique {
		out[i] = MoodTag{Tag: tag, Weight: (n - float64(i)) / n}
	}
	return out
}

// Tags returns the tags in order.
func (w MoodTagWeights) Tags() []string {
	out := make([]string, len(w))
	for i, mt := range w {
		out[i] = mt.Tag
	}
	return out
}

// Primary returns up to n leading tags.
func (w MoodTagWeights) Primary(n int) []string {
	if n > len(w) {
		n = len(w)
	}
	if n < 0 {
		n = 0
	}
	return w[:n].Tags()
}

// Index builds a tag→weight lookup.
func (w MoodTagWeights) Index() map[string]float64 {
	idx := make(map[string]float64, len(w))
	for _, mt := range w {
		idx[mt.Tag] = mt.Weight
	}
	return idx
}
