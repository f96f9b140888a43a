package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// AssembleParams holds playlist size targets and diversity caps.
type AssembleParams struct {
	LibraryTarget int           `koanf:"library_target" validate:"gte=0"`
	RecsTarget    int           `koanf:"recs_target" validate:"gte=0"`
	ArtistCap     int           `koanf:"artist_cap" validate:"gte=1"`
	AlbumCap      int           `koanf:"album_cap" validate:"gte=1"`
	BatchSize     int           `koanf:"batch_size" validate:"gte=1,lte=100"`
	BatchDelay    time.Duration `koanf:"batch_delay"`
}

// DefaultAssembleParams returns the reference targets.
func DefaultAssembleParams() AssembleParams {
	return AssembleParams{
		LibraryTarget: 15,
		RecsTarget:    20,
		ArtistCap:     2,
		AlbumCap:      2,
		BatchSize:     100,
		BatchDelay:    100 * time.Millisecond,
	}
}

// TotalTarget is the combined playlist size.
func (p AssembleParams) TotalTarget() int {
	return p.LibraryTarget + p.RecsTarget
}

// Assembler merges scored library tracks and candidates into a playlist.
type Assembler struct {
	catalog ports.CatalogProvider
	params  AssembleParams
	logger  *zap.Logger
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewAssembler constructs an Assembler.
func NewAssembler(catalog ports.CatalogProvider, params AssembleParams, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &Assembler{
		catalog: catalog,
		params:  params,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
		sleep:   domain.SleepContext,
	}
}

// capCounter enforces the per-artist and per-album caps across both passes.
type capCounter struct {
	artists   map[string]int
	albums    map[string]int
	ids       map[string]struct{}
	artistCap int
	albumCap  int
}

func newCapCounter(artistCap, albumCap int) *capCounter {
	return &capCounter{
		artists:   make(map[string]int),
		albums:    make(map[string]int),
		ids:       make(map[string]struct{}),
		artistCap: artistCap,
		albumCap:  albumCap,
	}
}

// admit records t and reports true when it fits under the caps. Tracks
// without an id or primary artist never fit. An empty album bypasses the
// album cap.
func (c *capCounter) admit(t domain.Track) bool {
	if t.ID == "" {
		return false
	}
	if _, dup := c.ids[t.ID]; dup {
		return false
	}
	artist := t.PrimaryArtist()
	if artist == "" {
		return false
	}
	if c.artists[artist] >= c.artistCap {
		return false
	}
	if t.Album != "" && c.albums[t.Album] >= c.albumCap {
		return false
	}

	c.ids[t.ID] = struct{}{}
	c.artists[artist]++
	if t.Album != "" {
		c.albums[t.Album]++
	}
	return true
}

// Select applies the caps and targets without touching the catalog.
// Library tracks are taken in order until LibraryTarget, then candidates
// until the combined target.
func (a *Assembler) Select(library, candidates []domain.Track) []domain.Track {
	caps := newCapCounter(a.params.ArtistCap, a.params.AlbumCap)
	selected := make([]domain.Track, 0, a.params.TotalTarget())

	libAdded := 0
	for _, t := range library {
		if libAdded >= a.params.LibraryTarget {
			break
		}
		if caps.admit(t) {
			selected = append(selected, t)
			libAdded++
		}
	}

	for _, t := range candidates {
		if len(selected) >= a.params.TotalTarget() {
			break
		}
		if caps.admit(t) {
			selected = append(selected, t)
		}
	}

	return selected
}

// PlaylistName builds the destination playlist name and description.
func PlaylistName(mood domain.Mood, at time.Time) (string, string) {
	date := at.Format("2006-01-02 15:04")
	return fmt.Sprintf("%s Mood - %s", mood.Title(), date),
		fmt.Sprintf("Songs matching your %s mood, created on %s.", mood, date)
}

// Assemble creates the playlist, selects tracks and adds them in batches.
// A creation failure is returned as domain.ErrPlaylistCreate. When adding
// items fails, or the pause between batches is interrupted, the created
// playlist is returned with an empty selection.
func (a *Assembler) Assemble(ctx context.Context, library, candidates []domain.Track, mood domain.Mood) (domain.Playlist, []domain.Track, error) {
	name, description := PlaylistName(mood, a.now())
	playlist, err := a.catalog.CreatePlaylist(ctx, name, description)
	if err != nil {
		a.logger.Error("assembler: failed to create playlist", zap.Error(err))
		return domain.Playlist{}, nil, fmt.Errorf("%w: %v", domain.ErrPlaylistCreate, err)
	}

	selected := a.Select(library, candidates)
	a.shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	if len(selected) == 0 {
		a.logger.Warn("assembler: no tracks selected after filtering", zap.String("playlist_id", playlist.ID))
		return playlist, selected, nil
	}

	uris := make([]string, 0, len(selected))
	for _, t := range selected {
		uris = append(uris, t.URI())
	}

	for start := 0; start < len(uris); start += a.params.BatchSize {
		end := start + a.params.BatchSize
		if end > len(uris) {
			end = len(uris)
		}
		if err := a.catalog.AddTracks(ctx, playlist.ID, uris[start:end]); err != nil {
			a.logger.Error("assembler: failed to add items",
				zap.String("playlist_id", playlist.ID),
				zap.Int("batch_start", start),
				zap.Error(err))
			return playlist, []domain.Track{}, nil
		}
		if end == len(uris) {
			break
		}
		if err := a.sleep(ctx, a.params.BatchDelay); err != nil {
			a.logger.Warn("assembler: interrupted between batches",
				zap.String("playlist_id", playlist.ID),
				zap.Int("added", end),
				zap.Error(err))
			return playlist, []domain.Track{}, nil
		}
	}

	a.logger.Info("assembler: playlist populated",
		zap.String("playlist_id", playlist.ID),
		zap.Int("tracks", len(selected)))
	return playlist, selected, nil
}
