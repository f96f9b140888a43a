package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// TestAssembler_Select verifies diversity caps and targets.
func TestAssembler_Select(t *testing.T) {
	a := NewAssembler(&mockCatalog{}, DefaultAssembleParams(), zap.NewNop())

	tests := []struct {
		name       string
		library    []domain.Track
		candidates []domain.Track
		wantIDs    []string
	}{
		{
			name: "artist cap across three passing tracks",
			library: []domain.Track{
				{ID: "1", Artists: []string{"Same"}, Album: "A1"},
				{ID: "2", Artists: []string{"Same"}, Album: "A2"},
				{ID: "3", Artists: []string{"Same"}, Album: "A3"},
			},
			wantIDs: []string{"1", "2"},
		},
		{
			name: "album cap",
			library: []domain.Track{
				{ID: "1", Artists: []string{"X"}, Album: "Hits"},
				{ID: "2", Artists: []string{"Y"}, Album: "Hits"},
				{ID: "3", Artists: []string{"Z"}, Album: "Hits"},
			},
			wantIDs: []string{"1", "2"},
		},
		{
			name: "empty album bypasses album cap",
			library: []domain.Track{
				{ID: "1", Artists: []string{"X"}},
				{ID: "2", Artists: []string{"Y"}},
				{ID: "3", Artists: []string{"Z"}},
			},
			wantIDs: []string{"1", "2", "3"},
		},
		{
			name: "caps are shared with candidates",
			library: []domain.Track{
				{ID: "1", Artists: []string{"Same"}, Album: "L1"},
				{ID: "2", Artists: []string{"Same"}, Album: "L2"},
			},
			candidates: []domain.Track{
				{ID: "3", Artists: []string{"Same"}, Album: "C1"},
				{ID: "4", Artists: []string{"Other"}, Album: "C2"},
			},
			wantIDs: []string{"1", "2", "4"},
		},
		{
			name: "missing artist and duplicate ids skipped",
			library: []domain.Track{
				{ID: "1", Album: "A"},
				{ID: "2", Artists: []string{"X"}},
			},
			candidates: []domain.Track{
				{ID: "2", Artists: []string{"Y"}},
				{ID: "", Artists: []string{"Z"}},
			},
			wantIDs: []string{"2"},
		},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			got := trackIDs(a.Select(tc.library, tc.candidates))
			if strings.Join(got, ",") != strings.Join(tc.wantIDs, ",") {
				t.Fatalf("Select() = %v, want %v", got, tc.wantIDs)
			}
		})
	}
}

// TestAssembler_SelectTargets verifies the library and combined targets.
func TestAssembler_SelectTargets(t *testing.T) {
	params := DefaultAssembleParams()
	a := NewAssembler(&mockCatalog{}, params, zap.NewNop())

	var library, candidates []domain.Track
	for i := 0; i < 30; i++ {
		library = append(library, domain.Track{ID: fmt.Sprintf("l%d", i), Artists: []string{fmt.Sprintf("LA%d", i)}})
		candidates = append(candidates, domain.Track{ID: fmt.Sprintf("c%d", i), Artists: []string{fmt.Sprintf("CA%d", i)}})
	}

	got := a.Select(library, candidates)

	if len(got) != params.TotalTarget() {
		t.Fatalf("selected %d, want %d", len(got), params.TotalTarget())
	}
	fromLibrary := 0
	for _, tr := range got {
		if strings.HasPrefix(tr.ID, "l") {
			fromLibrary++
		}
	}
	if fromLibrary != params.LibraryTarget {
		t.Fatalf("library tracks = %d, want %d", fromLibrary, params.LibraryTarget)
	}
}

// TestAssembler_Assemble verifies playlist creation, batching and degraded outcomes.
func TestAssembler_Assemble(t *testing.T) {
	at := time.Date(2024, 3, 9, 18, 5, 0, 0, time.UTC)
	library := []domain.Track{
		{ID: "a", Artists: []string{"A"}},
		{ID: "b", Artists: []string{"B"}},
		{ID: "c", Artists: []string{"C"}},
	}

	tests := []struct {
		name        string
		catalog     *mockCatalog
		batchSize   int
		wantErr     error
		wantTracks  int
		wantBatches int
	}{
		{name: "single batch", catalog: &mockCatalog{}, batchSize: 100, wantTracks: 3, wantBatches: 1},
		{name: "multiple batches", catalog: &mockCatalog{}, batchSize: 2, wantTracks: 3, wantBatches: 2},
		{name: "create failure", catalog: &mockCatalog{createErr: errors.New("403")}, batchSize: 100, wantErr: domain.ErrPlaylistCreate},
		{name: "add failure degrades", catalog: &mockCatalog{addErr: errors.New("500")}, batchSize: 100, wantTracks: 0},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultAssembleParams()
			params.BatchSize = tc.batchSize
			a := NewAssembler(tc.catalog, params, zap.NewNop())
			a.now = func() time.Time { return at }
			a.shuffle = noShuffle
			a.sleep = noSleep

			pl, selected, err := a.Assemble(context.Background(), library, nil, domain.MoodHappy)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Assemble() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assemble() unexpected error: %v", err)
			}
			if pl.ID != "pl-1" {
				t.Fatalf("playlist id = %q", pl.ID)
			}
			if len(selected) != tc.wantTracks {
				t.Fatalf("selected %d, want %d", len(selected), tc.wantTracks)
			}
			if len(tc.catalog.added) != tc.wantBatches {
				t.Fatalf("batches = %d, want %d", len(tc.catalog.added), tc.wantBatches)
			}
			if tc.wantBatches > 0 && tc.catalog.added[0][0] != "spotify:track:a" {
				t.Fatalf("first uri = %q", tc.catalog.added[0][0])
			}
			if got := tc.catalog.created[0]; got != "Happy Mood - 2024-03-09 18:05" {
				t.Fatalf("playlist name = %q", got)
			}
		})
	}
}

// TestAssembler_AssembleBatchDelay verifies the pause between batches is
// skipped after the last batch and that an interrupted pause degrades.
func TestAssembler_AssembleBatchDelay(t *testing.T) {
	library := []domain.Track{
		{ID: "a", Artists: []string{"A"}},
		{ID: "b", Artists: []string{"B"}},
		{ID: "c", Artists: []string{"C"}},
	}

	tests := []struct {
		name        string
		batchSize   int
		wantSleeps  int
		wantTracks  int
		wantBatches int
	}{
		{name: "single batch never pauses", batchSize: 100, wantSleeps: 0, wantTracks: 3, wantBatches: 1},
		{name: "exact multiple skips trailing pause", batchSize: 3, wantSleeps: 0, wantTracks: 3, wantBatches: 1},
		{name: "interrupted between batches", batchSize: 2, wantSleeps: 1, wantTracks: 0, wantBatches: 1},
	}

	for _, tc := range tests {
		tc := tc // capture range variable
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultAssembleParams()
			params.BatchSize = tc.batchSize
			catalog := &mockCatalog{}
			a := NewAssembler(catalog, params, zap.NewNop())
			a.shuffle = noShuffle
			sleeps := 0
			a.sleep = func(context.Context, time.Duration) error {
				sleeps++
				return context.Canceled
			}

			pl, selected, err := a.Assemble(context.Background(), library, nil, domain.MoodRelaxed)
			if err != nil {
				t.Fatalf("Assemble() unexpected error: %v", err)
			}
			if pl.ID != "pl-1" {
				t.Fatalf("playlist id = %q", pl.ID)
			}
			if sleeps != tc.wantSleeps {
				t.Fatalf("sleeps = %d, want %d", sleeps, tc.wantSleeps)
			}
			if len(selected) != tc.wantTracks {
				t.Fatalf("selected %d, want %d", len(selected), tc.wantTracks)
			}
			if len(catalog.added) != tc.wantBatches {
				t.Fatalf("batches = %d, want %d", len(catalog.added), tc.wantBatches)
			}
		})
	}
}

// TestPlaylistName verifies the name and description format.
func TestPlaylistName(t *testing.T) {
	name, desc := PlaylistName(domain.MoodRelaxed, time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC))
	if name != "Relaxed Mood - 2025-01-02 03:04" {
		t.Fatalf("name = %q", name)
	}
	if desc != "Songs matching your relaxed mood, created on 2025-01-02 03:04." {
		t.Fatalf("description = %q", desc)
	}
}
