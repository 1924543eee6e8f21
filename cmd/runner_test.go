package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/services"
	"github.com/kurgg/spm/internal/shared"
	tu "github.com/kurgg/spm/internal/testing"
	"github.com/urfave/cli/v3"
)

// refreshableMock serves a three track playlist plus matching search results
// so 'playlist refresh' can run end to end against a spy.
func refreshableMock() *tu.MockService {
	return &tu.MockService{
		GetPlaylistFn: func(ctx context.Context, playlistID string) (*models.Playlist, error) {
			return &models.Playlist{ID: playlistID, Name: "Gym Mix", TrackCount: 3}, nil
		},
		PlaylistTracksFn: func(ctx context.Context, playlistID string) ([]models.Track, error) {
			return []models.Track{
				{ID: "t1", Title: "One", ArtistID: "a1"},
				{ID: "t2", Title: "Two", ArtistID: "a1"},
				{ID: "t3", Title: "Three", ArtistID: "a2"},
			}, nil
		},
		AudioFeaturesFn: func(ctx context.Context, trackIDs []string) (map[string]services.AudioFeatures, error) {
			features := make(map[string]services.AudioFeatures, len(trackIDs))
			for _, id := range trackIDs {
				features[id] = services.AudioFeatures{Danceability: 0.4, Energy: 0.5}
			}
			return features, nil
		},
		ArtistGenresFn: func(ctx context.Context, artistID string) ([]string, error) {
			return []string{"pop"}, nil
		},
		SearchTracksByGenreFn: func(ctx context.Context, genre string, limit int) ([]models.Track, error) {
			return []models.Track{
				{ID: "c1", Title: "Candidate 1", URI: "spotify:track:c1"},
				{ID: "c2", Title: "Candidate 2", URI: "spotify:track:c2"},
				{ID: "c3", Title: "Candidate 3", URI: "spotify:track:c3"},
			}, nil
		},
	}
}

// runCLI executes a command line against a fresh app built from the runner.
func runCLI(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{
		Name:     "spm",
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"spm"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")
			spotify := &tu.MockService{}

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Input:   input,
				Spotify: spotify,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
			if runner.spotify != spotify {
				t.Error("expected spotify to be set")
			}
			if runner.analyzer == nil {
				t.Error("expected analyzer to be constructed")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			if err := runner.writeJSON(data, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			if err := runner.writeJSON(data, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("confirm", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
			want  bool
		}{
			{"lowercase y consents", "y\n", true},
			{"yes consents", "yes\n", true},
			{"uppercase Y consents", "Y\n", true},
			{"n declines", "n\n", false},
			{"empty line declines", "\n", false},
			{"garbage declines", "maybe\n", false},
			{"EOF declines", "", false},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				runner := NewRunner(RunnerOpts{
					Output: &bytes.Buffer{},
					Input:  strings.NewReader(tc.input),
				})

				if got := runner.confirm("proceed?"); got != tc.want {
					t.Errorf("confirm(%q) = %v, want %v", tc.input, got, tc.want)
				}
			})
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestPlaylistRefresh(t *testing.T) {
	t.Run("declined confirmation leaves playlist untouched", func(t *testing.T) {
		spotify := refreshableMock()
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: spotify,
			Output:  output,
			Input:   strings.NewReader("n\n"),
		})

		if err := runCLI(t, runner, "playlist", "refresh", "--id", "pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if spotify.ReplaceCallCount() != 0 {
			t.Fatalf("declined confirmation must not replace items, got %d calls", spotify.ReplaceCallCount())
		}
		if !strings.Contains(output.String(), "Aborted") {
			t.Errorf("expected abort notice, got %s", output.String())
		}
	})

	t.Run("EOF on input counts as decline", func(t *testing.T) {
		spotify := refreshableMock()

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: spotify,
			Output:  &bytes.Buffer{},
			Input:   strings.NewReader(""),
		})

		if err := runCLI(t, runner, "playlist", "refresh", "--id", "pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if spotify.ReplaceCallCount() != 0 {
			t.Errorf("EOF must not replace items, got %d calls", spotify.ReplaceCallCount())
		}
	})

	t.Run("accepted confirmation replaces items", func(t *testing.T) {
		spotify := refreshableMock()
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: spotify,
			Output:  output,
			Input:   strings.NewReader("y\n"),
		})

		if err := runCLI(t, runner, "playlist", "refresh", "--id", "pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if spotify.ReplaceCallCount() != 1 {
			t.Fatalf("expected one replace call, got %d", spotify.ReplaceCallCount())
		}

		call := spotify.ReplaceCalls[0]
		if call.PlaylistID != "pl1" {
			t.Errorf("expected playlist 'pl1', got %s", call.PlaylistID)
		}
		if len(call.URIs) != 3 || call.URIs[0] != "spotify:track:c1" {
			t.Errorf("unexpected URIs %v", call.URIs)
		}
		if !strings.Contains(output.String(), "Playlist refreshed") {
			t.Errorf("expected success notice, got %s", output.String())
		}
	})

	t.Run("--yes skips the prompt entirely", func(t *testing.T) {
		spotify := refreshableMock()
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: spotify,
			Output:  output,
			Input:   strings.NewReader(""), // nothing to read
		})

		if err := runCLI(t, runner, "playlist", "refresh", "--id", "pl1", "--yes"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if spotify.ReplaceCallCount() != 1 {
			t.Errorf("expected one replace call with --yes, got %d", spotify.ReplaceCallCount())
		}
		if strings.Contains(output.String(), "[y/N]") {
			t.Error("expected no prompt with --yes")
		}
	})

	t.Run("limit caps replacement tracks", func(t *testing.T) {
		spotify := refreshableMock()

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: spotify,
			Output:  &bytes.Buffer{},
			Input:   strings.NewReader(""),
		})

		if err := runCLI(t, runner, "playlist", "refresh", "--id", "pl1", "--yes", "--limit", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if spotify.ReplaceCallCount() != 1 {
			t.Fatalf("expected one replace call, got %d", spotify.ReplaceCallCount())
		}
		if got := len(spotify.ReplaceCalls[0].URIs); got != 2 {
			t.Errorf("expected 2 URIs with --limit 2, got %d", got)
		}
	})
}

func TestPlaylistAnalyze(t *testing.T) {
	t.Run("renders profile as text", func(t *testing.T) {
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: refreshableMock(),
			Output:  output,
		})

		if err := runCLI(t, runner, "playlist", "analyze", "--id", "pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Gym Mix") {
			t.Errorf("expected playlist name in output, got %s", result)
		}
		if !strings.Contains(result, "pop") {
			t.Errorf("expected genre in output, got %s", result)
		}
		if !strings.Contains(result, "0.40") {
			t.Errorf("expected danceability in output, got %s", result)
		}
	})

	t.Run("renders profile as JSON", func(t *testing.T) {
		output := &bytes.Buffer{}

		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Spotify: refreshableMock(),
			Output:  output,
		})

		if err := runCLI(t, runner, "playlist", "analyze", "--id", "pl1", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), `"genre": "pop"`) {
			t.Errorf("expected JSON profile, got %s", output.String())
		}
	})

	t.Run("missing service yields ErrServiceUnavailable", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Config: shared.DefaultConfig(),
			Output: &bytes.Buffer{},
		})

		err := runCLI(t, runner, "playlist", "analyze", "--id", "pl1")
		if err == nil {
			t.Fatal("expected error without a spotify service")
		}
	})
}
