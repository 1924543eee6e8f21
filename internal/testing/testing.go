// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/services"
)

// ReplaceCall records a single ReplacePlaylistItems invocation.
type ReplaceCall struct {
	PlaylistID string
	URIs       []string
}

// MockService is a test double for [services.Service].
//
// Behavior is customized per-test by assigning the Fn function fields;
// unset fields return zero values. Mutating calls are recorded so tests
// can assert on (or assert the absence of) side effects.
type MockService struct {
	mu sync.Mutex

	GetPlaylistsFn        func(ctx context.Context) ([]models.Playlist, error)
	GetPlaylistFn         func(ctx context.Context, playlistID string) (*models.Playlist, error)
	PlaylistTracksFn      func(ctx context.Context, playlistID string) ([]models.Track, error)
	ArtistGenresFn        func(ctx context.Context, artistID string) ([]string, error)
	AudioFeaturesFn       func(ctx context.Context, trackIDs []string) (map[string]services.AudioFeatures, error)
	SearchTracksByGenreFn func(ctx context.Context, genre string, limit int) ([]models.Track, error)
	ReplaceFn             func(ctx context.Context, playlistID string, uris []string) error

	ReplaceCalls []ReplaceCall
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.GetPlaylistsFn != nil {
		return m.GetPlaylistsFn(ctx)
	}
	return []models.Playlist{}, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if m.GetPlaylistFn != nil {
		return m.GetPlaylistFn(ctx, playlistID)
	}
	return &models.Playlist{ID: playlistID}, nil
}

func (m *MockService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.PlaylistTracksFn != nil {
		return m.PlaylistTracksFn(ctx, playlistID)
	}
	return []models.Track{}, nil
}

func (m *MockService) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	if m.ArtistGenresFn != nil {
		return m.ArtistGenresFn(ctx, artistID)
	}
	return []string{}, nil
}

func (m *MockService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]services.AudioFeatures, error) {
	if m.AudioFeaturesFn != nil {
		return m.AudioFeaturesFn(ctx, trackIDs)
	}
	return map[string]services.AudioFeatures{}, nil
}

func (m *MockService) SearchTracksByGenre(ctx context.Context, genre string, limit int) ([]models.Track, error) {
	if m.SearchTracksByGenreFn != nil {
		return m.SearchTracksByGenreFn(ctx, genre, limit)
	}
	return []models.Track{}, nil
}

func (m *MockService) ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	m.ReplaceCalls = append(m.ReplaceCalls, ReplaceCall{PlaylistID: playlistID, URIs: uris})
	m.mu.Unlock()

	if m.ReplaceFn != nil {
		return m.ReplaceFn(ctx, playlistID, uris)
	}
	return nil
}

func (m *MockService) Name() string { return "mock" }

// ReplaceCallCount reports how many times ReplacePlaylistItems was invoked.
func (m *MockService) ReplaceCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReplaceCalls)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
