package spotify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

const (
	savedPageLimit    = 50
	playlistItemLimit = 100
	playlistURLPrefix = "https://open.spotify.com/playlist/"
)

// Scopes are the permissions the refresh token must carry.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadPrivate,
}

// Config holds credentials and endpoints for the Spotify Web API.
type Config struct {
	ClientID      string        `koanf:"client_id" validate:"required"`
	ClientSecret  string        `koanf:"client_secret" validate:"required"`
	RefreshToken  string        `koanf:"refresh_token"`
	RedirectURI   string        `koanf:"redirect_uri"`
	BaseURL       string        `koanf:"base_url"`
	TokenURL      string        `koanf:"token_url"`
	PlaylistLimit int           `koanf:"playlist_limit" validate:"gte=0,lte=50"`
	Timeout       time.Duration `koanf:"timeout"`
	Retry         RetryConfig   `koanf:"retry"`
}

// Client is the Spotify catalog adapter.
type Client struct {
	api           *spotify.Client
	logger        *zap.Logger
	playlistLimit int
	shuffle       func(n int, swap func(i, j int))

	mu     sync.Mutex
	userID string
}

// compile-time interface assertion
var _ ports.CatalogProvider = (*Client)(nil)

// OAuthConfig builds the oauth2 configuration for cfg.
func OAuthConfig(cfg Config) *oauth2.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: tokenURL,
		},
	}
}

// NewClient builds a client authenticated with the configured refresh token.
// Both token refreshes and API calls go through the retrying transport.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.RefreshToken == "" {
		return nil, errors.New("spotify adapter: refresh token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{
		Transport: newRetryTransport(http.DefaultTransport, cfg.Retry, logger),
		Timeout:   timeout,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	httpClient := OAuthConfig(cfg).Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	httpClient.Timeout = timeout

	return NewClientWithHTTP(httpClient, cfg.BaseURL, cfg.PlaylistLimit, logger), nil
}

// NewClientWithHTTP wraps an already-authenticated HTTP client. An empty
// baseURL uses the public API.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, playlistLimit int, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if playlistLimit <= 0 {
		playlistLimit = 20
	}

	var opts []spotify.ClientOption
	if baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &Client{
		api:           spotify.New(httpClient, opts...),
		logger:        logger,
		playlistLimit: playlistLimit,
		shuffle:       rand.Shuffle,
	}
}

func (c *Client) currentUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return c.userID, nil
	}
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("spotify adapter: current user: %w", err)
	}
	c.userID = user.ID
	return c.userID, nil
}

// LibraryTracks returns saved tracks plus tracks from the user's own
// playlists, unique by id and shuffled. Failures reading either source are
// logged; only a failure to identify the user is returned.
func (c *Client) LibraryTracks(ctx context.Context) ([]domain.Track, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var tracks []domain.Track
	add := func(ft *spotify.FullTrack, source string) {
		if ft == nil || ft.ID == "" {
			return
		}
		id := string(ft.ID)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		tracks = append(tracks, mapTrackToDomain(*ft, source))
	}

	if err := c.savedTracks(ctx, add); err != nil {
		c.logger.Warn("spotify adapter: saved tracks unavailable", zap.Error(err))
	}
	saved := len(tracks)

	if err := c.ownedPlaylistTracks(ctx, userID, add); err != nil {
		c.logger.Warn("spotify adapter: playlists unavailable", zap.Error(err))
	}

	c.shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})

	c.logger.Info("spotify adapter: library read",
		zap.Int("saved", saved),
		zap.Int("from_playlists", len(tracks)-saved))
	return tracks, nil
}

func (c *Client) savedTracks(ctx context.Context, add func(*spotify.FullTrack, string)) error {
	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(savedPageLimit))
	if err != nil {
		return fmt.Errorf("spotify adapter: saved tracks: %w", err)
	}
	for {
		for i := range page.Tracks {
			add(&page.Tracks[i].FullTrack, SourceSaved)
		}
		err := c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("spotify adapter: saved tracks page: %w", err)
		}
	}
}

func (c *Client) ownedPlaylistTracks(ctx context.Context, userID string, add func(*spotify.FullTrack, string)) error {
	playlists, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(c.playlistLimit))
	if err != nil {
		return fmt.Errorf("spotify adapter: playlists: %w", err)
	}

	for _, pl := range playlists.Playlists {
		if pl.Owner.ID != userID {
			continue
		}
		name := pl.Name
		if name == "" {
			name = "Unnamed"
		}
		if err := c.playlistItems(ctx, pl.ID, name, add); err != nil {
			c.logger.Warn("spotify adapter: playlist items unavailable",
				zap.String("playlist", name),
				zap.Error(err))
		}
	}
	return nil
}

func (c *Client) playlistItems(ctx context.Context, id spotify.ID, source string, add func(*spotify.FullTrack, string)) error {
	page, err := c.api.GetPlaylistItems(ctx, id, spotify.Limit(playlistItemLimit))
	if err != nil {
		return err
	}
	for {
		for i := range page.Items {
			add(page.Items[i].Track.Track, source)
		}
		err := c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// TopGenres returns the distinct genres of the user's short-term top artists.
func (c *Client) TopGenres(ctx context.Context, limit int) ([]string, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx,
		spotify.Limit(limit),
		spotify.Timerange(spotify.ShortTermRange))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: top artists: %w", err)
	}

	seen := make(map[string]struct{})
	var genres []string
	for _, artist := range page.Artists {
		for _, g := range artist.Genres {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			genres = append(genres, g)
		}
	}
	return genres, nil
}

// SearchTracks runs a track search and returns the results in API order.
func (c *Client) SearchTracks(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.Track, error) {
	reqOpts := []spotify.RequestOption{}
	if opts.Limit > 0 {
		reqOpts = append(reqOpts, spotify.Limit(opts.Limit))
	}
	if opts.Market != "" {
		reqOpts = append(reqOpts, spotify.Market(opts.Market))
	}

	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: search %q: %w", query, err)
	}
	if res == nil || res.Tracks == nil {
		return nil, nil
	}

	tracks := make([]domain.Track, 0, len(res.Tracks.Tracks))
	for _, ft := range res.Tracks.Tracks {
		tracks = append(tracks, mapSearchTrackToDomain(ft))
	}
	return tracks, nil
}

// CreatePlaylist creates a private, non-collaborative playlist for the user.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (domain.Playlist, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return domain.Playlist{}, err
	}

	pl, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("spotify adapter: create playlist: %w", err)
	}

	url := pl.ExternalURLs["spotify"]
	if url == "" {
		url = playlistURLPrefix + string(pl.ID)
	}
	return domain.Playlist{ID: string(pl.ID), Name: pl.Name, URL: url}, nil
}

// AddTracks appends track URIs to a playlist in a single request. Callers
// keep batches at or under 100 items.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		ids = append(ids, trackIDFromURI(uri))
	}
	if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("spotify adapter: add %d tracks: %w", len(ids), err)
	}
	return nil
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
