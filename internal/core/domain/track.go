package domain

import "strings"

// DefaultImageURL is used when a track has no album artwork.
const DefaultImageURL = "https://place-hold.it/300x300"

// SourceSearch labels tracks that came from catalog search rather than the library.
const SourceSearch = "search"

// Track represents a musical track in the domain layer.
// Tags, MoodScore and Popularity are optional: nil means "not yet known",
// which is distinct from an empty tag list or a zero score.
type Track struct {
	ID         string
	Name       string
	Artists    []string
	Album      string // optional
	ImageURL   string // optional
	Source     string // library bucket name or SourceSearch
	Tags       *[]string
	MoodScore  *float64
	Popularity *int // search candidates only
}

// PrimaryArtist returns the first credited artist, or "" when none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Enriched reports whether tag lookup has run for this track.
func (t Track) Enriched() bool {
	return t.Tags != nil
}

// Scored reports whether the mood scorer accepted this track.
func (t Track) Scored() bool {
	return t.MoodScore != nil
}

// TagList returns the enriched tags, or nil when the track was never enriched.
func (t Track) TagList() []string {
	if t.Tags == nil {
		return nil
	}
	return *t.Tags
}

// WithTags returns a copy of the track carrying the given tag list.
func (t Track) WithTags(tags []string) Track {
	cp := make([]string, len(tags))
	copy(cp, tags)
	t.Tags = &cp
	return t
}

// WithScore returns a copy of the track carrying a mood score.
func (t Track) WithScore(score float64) Track {
	t.MoodScore = &score
	return t
}

// Score returns the mood score, or 0 for unscored tracks.
func (t Track) Score() float64 {
	if t.MoodScore == nil {
		return 0
	}
	return *t.MoodScore
}

// URI is the Spotify URI used for playlist mutation.
func (t Track) URI() string {
	return "spotify:track:" + t.ID
}

// Image returns the artwork URL or the placeholder.
func (t Track) Image() string {
	if strings.TrimSpace(t.ImageURL) == "" {
		return DefaultImageURL
	}
	return t.ImageURL
}

// TagKey builds the case-insensitive cache key for an artist/track pair.
func TagKey(artist, track string) string {
	return strings.ToLower(artist + "|||" + track)
}
