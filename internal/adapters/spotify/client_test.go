package spotify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/adapters/spotify"
	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// --- Helpers ---

func trackJSON(id, name, artist, album string, popularity int) string {
	return `{"type":"track","id":"` + id + `","name":"` + name + `","popularity":` + itoa(popularity) +
		`,"artists":[{"name":"` + artist + `"}],"album":{"name":"` + album + `","images":[{"url":"https://img/` + id + `"}]}}`
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// fakeAPI serves the subset of the Web API the adapter uses.
type fakeAPI struct {
	t        *testing.T
	server   *httptest.Server
	created  []map[string]any
	addedIDs []string
	failTop  bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case path == "/me":
		_, _ = io.WriteString(w, `{"id":"user1","display_name":"Test"}`)

	case path == "/me/tracks" && r.URL.Query().Get("offset") == "":
		_, _ = io.WriteString(w, `{"items":[{"added_at":"2024-01-01T00:00:00Z","track":`+
			trackJSON("s1", "Saved One", "Artist A", "Album A", 50)+`}],"limit":1,"offset":0,"total":2,"next":"`+
			f.server.URL+`/me/tracks?offset=1"}`)

	case path == "/me/tracks":
		_, _ = io.WriteString(w, `{"items":[{"added_at":"2024-01-01T00:00:00Z","track":`+
			trackJSON("s2", "Saved Two", "Artist B", "Album B", 30)+`}],"limit":1,"offset":1,"total":2,"next":null}`)

	case path == "/me/playlists":
		_, _ = io.WriteString(w, `{"items":[`+
			`{"id":"p1","name":"Mine","owner":{"id":"user1"}},`+
			`{"id":"p2","name":"Theirs","owner":{"id":"someone"}}],"total":2}`)

	case strings.HasPrefix(path, "/playlists/p1/") && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"items":[`+
			`{"track":`+trackJSON("s1", "Saved One", "Artist A", "Album A", 50)+`},`+
			`{"track":`+trackJSON("m1", "Mine One", "Artist C", "Album C", 10)+`}],"total":2}`)

	case strings.HasPrefix(path, "/playlists/p2/"):
		f.t.Errorf("playlist owned by someone else must not be read")
		w.WriteHeader(http.StatusForbidden)

	case path == "/me/top/artists":
		if f.failTop {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"status":500,"message":"boom"}}`)
			return
		}
		if got := r.URL.Query().Get("time_range"); got != "short_term" {
			f.t.Errorf("time_range = %q, want short_term", got)
		}
		_, _ = io.WriteString(w, `{"items":[`+
			`{"id":"a1","name":"A","genres":["indie pop","dance pop"]},`+
			`{"id":"a2","name":"B","genres":["dance pop","rock"]}],"total":2}`)

	case path == "/search":
		q := r.URL.Query()
		if q.Get("type") != "track" || q.Get("market") != "from_token" || q.Get("limit") != "50" {
			f.t.Errorf("unexpected search params: %v", q)
		}
		_, _ = io.WriteString(w, `{"tracks":{"items":[`+
			trackJSON("r1", "Found", "Artist D", "Album D", 60)+`],"total":1}}`)

	case path == "/users/user1/playlists" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"new","name":"`+body["name"].(string)+`","external_urls":{"spotify":"https://open.spotify.com/playlist/new"}}`)

	case strings.HasPrefix(path, "/playlists/new/") && r.Method == http.MethodPost:
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.addedIDs = append(f.addedIDs, body.URIs...)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"snapshot_id":"snap"}`)

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) client() *spotify.Client {
	return spotify.NewClientWithHTTP(f.server.Client(), f.server.URL, 20, zap.NewNop())
}

// --- Tests ---

func TestLibraryTracks(t *testing.T) {
	api := newFakeAPI(t)

	tracks, err := api.client().LibraryTracks(context.Background())
	if err != nil {
		t.Fatalf("LibraryTracks: %v", err)
	}

	sources := make(map[string]string)
	for _, tr := range tracks {
		if _, dup := sources[tr.ID]; dup {
			t.Fatalf("duplicate track id %q", tr.ID)
		}
		if tr.Popularity != nil {
			t.Fatalf("library track %s has popularity %d", tr.ID, *tr.Popularity)
		}
		sources[tr.ID] = tr.Source
	}
	want := map[string]string{"s1": spotify.SourceSaved, "s2": spotify.SourceSaved, "m1": "Mine"}
	if len(sources) != len(want) {
		t.Fatalf("got %v, want %v", sources, want)
	}
	for id, src := range want {
		if sources[id] != src {
			t.Errorf("source of %s: got %q, want %q", id, sources[id], src)
		}
	}
}

func TestTopGenres(t *testing.T) {
	tests := []struct {
		name    string
		failTop bool
		want    []string
		wantErr bool
	}{
		{name: "distinct genres in order", want: []string{"indie pop", "dance pop", "rock"}},
		{name: "api error", failTop: true, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.failTop = tc.failTop

			got, err := api.client().TopGenres(context.Background(), 20)
			if (err != nil) != tc.wantErr {
				t.Fatalf("TopGenres error = %v, wantErr %v", err, tc.wantErr)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("TopGenres = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSearchTracks(t *testing.T) {
	api := newFakeAPI(t)

	got, err := api.client().SearchTracks(context.Background(), "happy upbeat", ports.SearchOptions{Limit: 50, Market: "from_token"})
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got))
	}
	tr := got[0]
	if tr.ID != "r1" || tr.Name != "Found" || tr.Album != "Album D" || tr.PrimaryArtist() != "Artist D" {
		t.Fatalf("unexpected track: %+v", tr)
	}
	if tr.Popularity == nil || *tr.Popularity != 60 {
		t.Fatalf("popularity not mapped: %v", tr.Popularity)
	}
	if tr.ImageURL != "https://img/r1" || tr.Source != domain.SourceSearch {
		t.Fatalf("image/source not mapped: %+v", tr)
	}
}

func TestCreatePlaylistAndAddTracks(t *testing.T) {
	api := newFakeAPI(t)
	client := api.client()

	pl, err := client.CreatePlaylist(context.Background(), "Happy Mood - 2024-01-01 10:00", "Songs matching your happy mood, created on 2024-01-01 10:00.")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if pl.ID != "new" || pl.URL != "https://open.spotify.com/playlist/new" {
		t.Fatalf("unexpected playlist: %+v", pl)
	}
	if len(api.created) != 1 || api.created[0]["public"] != false {
		t.Fatalf("playlist must be created private: %v", api.created)
	}

	if err := client.AddTracks(context.Background(), pl.ID, []string{"spotify:track:a", "spotify:track:b"}); err != nil {
		t.Fatalf("AddTracks: %v", err)
	}
	got := append([]string(nil), api.addedIDs...)
	sort.Strings(got)
	if strings.Join(got, ",") != "spotify:track:a,spotify:track:b" {
		t.Fatalf("added uris = %v", got)
	}
}
