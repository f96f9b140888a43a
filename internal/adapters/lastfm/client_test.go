package lastfm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = ts.URL + "/2.0/"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	return NewClient(ts.Client(), cfg, zap.NewNop())
}

func TestClient_TrackTags(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    []string
		wantErr error
	}{
		{
			name: "tag list",
			body: `{"track":{"name":"Song","toptags":{"tag":[{"name":"Indie","url":"x"},{"name":"dream pop","url":"y"}]}}}`,
			want: []string{"Indie", "dream pop"},
		},
		{
			name: "single tag object",
			body: `{"track":{"name":"Song","toptags":{"tag":{"name":"rock","url":"x"}}}}`,
			want: []string{"rock"},
		},
		{
			name: "empty toptags string",
			body: `{"track":{"name":"Song","toptags":""}}`,
			want: nil,
		},
		{
			name:    "bad gateway without payload maps to ErrNoTags",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: ports.ErrNoTags,
		},
		{
			name:    "not found maps to ErrNoTags",
			body:    `{"error":6,"message":"Track not found"}`,
			wantErr: ports.ErrNoTags,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("method") != methodTrackInfo || q.Get("api_key") != "test-key" ||
					q.Get("format") != "json" || q.Get("autocorrect") != "1" {
					t.Errorf("unexpected query: %v", q)
				}
				if tc.status != 0 {
					w.WriteHeader(tc.status)
				}
				_, _ = io.WriteString(w, tc.body)
			})

			got, err := client.TrackTags(context.Background(), "Artist", "Song")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("TrackTags error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TrackTags: %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("TrackTags = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClient_TrackTagsRetriesCleanTitle(t *testing.T) {
	var titles []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("track")
		titles = append(titles, title)
		if title == "Heroes" {
			_, _ = io.WriteString(w, `{"track":{"toptags":{"tag":[{"name":"glam rock"}]}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":6,"message":"Track not found"}`)
	})

	got, err := client.TrackTags(context.Background(), "David Bowie", "Heroes - 2017 Remaster")
	if err != nil {
		t.Fatalf("TrackTags: %v", err)
	}
	if len(got) != 1 || got[0] != "glam rock" {
		t.Fatalf("TrackTags = %v", got)
	}
	if strings.Join(titles, "|") != "Heroes - 2017 Remaster|Heroes" {
		t.Fatalf("lookups = %v", titles)
	}
}

func TestClient_ArtistTopTags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("method") != methodArtistTopTags {
			t.Errorf("method = %q", r.URL.Query().Get("method"))
		}
		_, _ = io.WriteString(w, `{"toptags":{"tag":[{"count":100,"name":"pop"},{"count":50,"name":" "},{"count":20,"name":"dance"}],"@attr":{"artist":"A"}}}`)
	})

	got, err := client.ArtistTopTags(context.Background(), "A")
	if err != nil {
		t.Fatalf("ArtistTopTags: %v", err)
	}
	if strings.Join(got, ",") != "pop,dance" {
		t.Fatalf("ArtistTopTags = %v", got)
	}
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTemporary bool
	}{
		{name: "rate limited", status: http.StatusOK, body: `{"error":29,"message":"Rate Limit Exceeded"}`, wantTemporary: true},
		{name: "invalid key", status: http.StatusForbidden, body: `{"error":10,"message":"Invalid API key"}`, wantTemporary: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.ArtistTopTags(context.Background(), "A")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Temporary() != tc.wantTemporary {
				t.Fatalf("Temporary() = %v, want %v", apiErr.Temporary(), tc.wantTemporary)
			}
			if errors.Is(err, ports.ErrNoTags) {
				t.Fatalf("error %d must not match ErrNoTags", apiErr.Code)
			}
		})
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.BaseURL = ts.URL + "/"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 100
	cfg.Breaker = BreakerConfig{FailureThreshold: 3, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute}
	client := NewClient(ts.Client(), cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := client.ArtistTopTags(context.Background(), "A"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := client.ArtistTopTags(context.Background(), "A")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hits = %d, want 3", hits.Load())
	}
}

func TestClient_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.ArtistTopTags(context.Background(), "A")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Method != methodArtistTopTags {
		t.Fatalf("StatusError = %+v", statusErr)
	}
	if !errors.Is(err, ports.ErrNoTags) {
		t.Fatalf("status error should read as no tags")
	}
}
