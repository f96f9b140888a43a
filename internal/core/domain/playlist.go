package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNoMoodText     = errors.New("No mood text provided")
	ErrClassification = errors.New("Sentiment analysis failed")
	ErrLibraryRead    = errors.New("Could not fetch tracks from Spotify library.")
	ErrNoCandidates   = errors.New("Couldn't find enough relevant tracks to create a playlist.")
	ErrPlaylistCreate = errors.New("Failed to create Spotify playlist.")
)

// Playlist is the handle of a playlist created on the catalog service.
type Playlist struct {
	ID   string
	Name string
	URL  string
}

// History is the persisted set of previously recommended track ids.
type History struct {
	TrackIDs    []string  `json:"tracks"`
	LastUpdated time.Time `json:"last_updated"`
}

// Contains reports whether id was recommended before.
func (h History) Contains(id string) bool {
	for _, existing := range h.TrackIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Set returns the ids as a lookup set.
func (h History) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(h.TrackIDs))
	for _, id := range h.TrackIDs {
		set[id] = struct{}{}
	}
	return set
}

// Merge returns the union of h and ids stamped with now. Existing order is
// kept and new ids are appended, so history never shrinks.
func (h History) Merge(ids []string, now time.Time) History {
	set := h.Set()
	merged := make([]string, len(h.TrackIDs), len(h.TrackIDs)+len(ids))
	copy(merged, h.TrackIDs)
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		merged = append(merged, id)
	}
	return History{TrackIDs: merged, LastUpdated: now}
}

// ResultTrack is the serialized form of a selected track.
type ResultTrack struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Artists       []string `json:"artists"`
	Album         string   `json:"album"`
	AlbumImageURL string   `json:"albumImageUrl"`
}

// Result is the success payload of a pipeline run.
type Result struct {
	Tracks       []ResultTrack `json:"tracks"`
	SpotifyURL   string        `json:"spotify_url"`
	DominantMood Mood          `json:"dominant_mood"`
}

// ErrorResult is the failure payload of a pipeline run.
type ErrorResult struct {
	Error string `json:"error"`
}

// NewResultTrack formats a track for output.
func NewResultTrack(t Track) ResultTrack {
	artists := t.Artists
	if len(artists) == 0 {
		artists = []string{"?"}
	}
	name := t.Name
	if name == "" {
		name = "?"
	}
	return ResultTrack{
		ID:            t.ID,
		Name:          name,
		Artists:       artists,
		Album:         t.Album,
		AlbumImageURL: t.Image(),
	}
}

// ErrorMessage returns the user-facing message for a pipeline error: the
// matching sentinel's text, or the error's own text otherwise. A
// classification failure keeps its cause after the sentinel text.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrClassification) {
		msg := err.Error()
		if i := strings.Index(msg, ErrClassification.Error()); i >= 0 {
			return msg[i:]
		}
		return ErrClassification.Error()
	}
	for _, sentinel := range []error{
		ErrNoMoodText,
		ErrClassification,
		ErrLibraryRead,
		ErrNoCandidates,
		ErrPlaylistCreate,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
