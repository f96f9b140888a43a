// Package lastfm implements ports.TagProvider against the Last.fm API.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	methodTrackInfo     = "track.getInfo"
	methodArtistTopTags = "artist.getTopTags"
)

// Last.fm error codes that mean the service, not the request, is at fault.
const (
	codeInvalidParameters = 6
	codeOperationFailed   = 8
	codeServiceOffline    = 11
	codeTemporarilyDown   = 16
	codeRateLimited       = 29
)

// Config holds Last.fm credentials and client-side limits.
type Config struct {
	APIKey            string        `koanf:"api_key" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`
	Timeout           time.Duration `koanf:"timeout"`
	Breaker           BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker around API calls.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
	MaxRequests      uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
}

// DefaultConfig returns 5 requests per second and a breaker that opens
// after 5 consecutive failures for 30 seconds.
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		RequestsPerSecond: 5,
		Burst:             5,
		Timeout:           15 * time.Second,
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
		},
	}
}

// APIError is an error payload returned by Last.fm.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm: error %d: %s", e.Code, e.Message)
}

// Is makes "not found" payloads match ports.ErrNoTags.
func (e *APIError) Is(target error) bool {
	return target == ports.ErrNoTags && e.Code == codeInvalidParameters
}

// Temporary reports whether the error is the service's fault.
func (e *APIError) Temporary() bool {
	switch e.Code {
	case codeOperationFailed, codeServiceOffline, codeTemporarilyDown, codeRateLimited:
		return true
	}
	return false
}

// StatusError is a non-200 response without a Last.fm error payload. It
// counts as "no result" for that lookup only.
type StatusError struct {
	Method     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lastfm: %s: status %d", e.Method, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ports.ErrNoTags
}

// Client is the Last.fm tag adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// compile-time interface assertion
var _ ports.TagProvider = (*Client)(nil)

// NewClient constructs a Last.fm client. A nil httpClient gets one with the
// configured timeout.
func NewClient(httpClient *http.Client, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker = def.Breaker
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	threshold := cfg.Breaker.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "lastfm",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("lastfm: circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:     logger,
	}
}

type tagEntry struct {
	Name string `json:"name"`
}

type trackInfoResponse struct {
	Track struct {
		TopTags json.RawMessage `json:"toptags"`
	} `json:"track"`
}

type topTagsResponse struct {
	TopTags json.RawMessage `json:"toptags"`
}

// TrackTags returns the top tags of a track. When Last.fm does not know the
// title, a second lookup is made with release-variant noise removed.
func (c *Client) TrackTags(ctx context.Context, artist, track string) ([]string, error) {
	tags, err := c.trackTags(ctx, artist, track)
	if err != nil && !errors.Is(err, ports.ErrNoTags) {
		return nil, err
	}
	if len(tags) > 0 {
		return tags, nil
	}

	if clean := cleanTitle(track); clean != "" && clean != strings.TrimSpace(track) {
		c.logger.Debug("lastfm: retrying with cleaned title",
			zap.String("artist", artist),
			zap.String("title", track),
			zap.String("clean", clean))
		return c.trackTags(ctx, artist, clean)
	}
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) trackTags(ctx context.Context, artist, track string) ([]string, error) {
	body, err := c.call(ctx, methodTrackInfo, url.Values{
		"artist":      {artist},
		"track":       {track},
		"autocorrect": {"1"},
	})
	if err != nil {
		return nil, err
	}

	var resp trackInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: decode %s: %w", methodTrackInfo, err)
	}
	return parseTagList(resp.Track.TopTags), nil
}

// ArtistTopTags returns the top tags of an artist.
func (c *Client) ArtistTopTags(ctx context.Context, artist string) ([]string, error) {
	body, err := c.call(ctx, methodArtistTopTags, url.Values{
		"artist":      {artist},
		"autocorrect": {"1"},
	})
	if err != nil {
		return nil, err
	}

	var resp topTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: decode %s: %w", methodArtistTopTags, err)
	}
	return parseTagList(resp.TopTags), nil
}

// call performs one rate-limited, breaker-guarded API request and returns
// the raw body of a successful response.
func (c *Client) call(ctx context.Context, method string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("lastfm: rate limiter: %w", err)
	}

	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	endpoint := c.baseURL + "?" + params.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("lastfm: build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("lastfm: %s: %w", method, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("lastfm: read %s: %w", method, err)
		}

		var apiErr APIError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != 0 {
			return nil, &apiErr
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Method: method, StatusCode: resp.StatusCode}
		}
		return raw, nil
	})

	var statusErr *StatusError
	switch {
	case err == nil:
		metrics.LastfmRequests.WithLabelValues(method, "ok").Inc()
	case errors.As(err, &statusErr):
		metrics.LastfmRequests.WithLabelValues(method, "status").Inc()
	case errors.Is(err, ports.ErrNoTags):
		metrics.LastfmRequests.WithLabelValues(method, "not_found").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.LastfmRequests.WithLabelValues(method, "rejected").Inc()
		return nil, fmt.Errorf("lastfm: %s: %w", method, err)
	default:
		metrics.LastfmRequests.WithLabelValues(method, "error").Inc()
	}
	return body, err
}

// parseTagList accepts the "toptags" object in its array, single-object or
// empty-string forms.
func parseTagList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var wrapper struct {
		Tag json.RawMessage `json:"tag"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || len(wrapper.Tag) == 0 {
		return nil
	}

	var entries []tagEntry
	if err := json.Unmarshal(wrapper.Tag, &entries); err != nil {
		var single tagEntry
		if err := json.Unmarshal(wrapper.Tag, &single); err != nil {
			return nil
		}
		entries = []tagEntry{single}
	}

	tags := make([]string, 0, len(entries))
	for _, e := range entries {
		if name := strings.TrimSpace(e.Name); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}
