package spotify

import (
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// SourceSaved labels tracks from the user's saved library.
const SourceSaved = "Saved"

// mapTrackToDomain converts a Spotify track to a domain.Track. Only the first
// album image is kept. Popularity is left unset; search results add it.
func mapTrackToDomain(ft spotify.FullTrack, source string) domain.Track {
	artists := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			artists = append(artists, name)
		}
	}

	imageURL := ""
	if len(ft.Album.Images) > 0 {
		imageURL = ft.Album.Images[0].URL
	}

	return domain.Track{
		ID:       string(ft.ID),
		Name:     ft.Name,
		Artists:  artists,
		Album:    ft.Album.Name,
		ImageURL: imageURL,
		Source:   source,
	}
}

// trackIDFromURI accepts a "spotify:track:<id>" URI or a bare id.
func trackIDFromURI(uri string) spotify.ID {
	return spotify.ID(strings.TrimPrefix(uri, "spotify:track:"))
}

// mapSearchTrackToDomain is mapTrackToDomain plus the popularity score used to
// filter search candidates.
func mapSearchTrackToDomain(ft spotify.FullTrack) domain.Track {
	t := mapTrackToDomain(ft, domain.SourceSearch)
	popularity := int(ft.Popularity)
	t.Popularity = &popularity
	return t
}
