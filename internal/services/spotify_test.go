package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kurgg/spm/internal/shared"
	"golang.org/x/oauth2"
)

// newTestService wires a SpotifyService to an httptest server.
func newTestService(t *testing.T, handler http.Handler) (*SpotifyService, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	srv.baseURL = ts.URL
	srv.token = &oauth2.Token{AccessToken: "test_access_token"}
	srv.httpClient = ts.Client()
	srv.baseBackoff = time.Millisecond

	return srv, ts
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:9999/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			credentials := map[string]string{
				"client_secret": "test_client_secret",
			}

			_, err := NewSpotifyService(credentials)
			if err == nil {
				t.Error("expected error for missing client_id")
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			credentials := map[string]string{
				"client_id": "test_client_id",
			}

			_, err := NewSpotifyService(credentials)
			if err == nil {
				t.Error("expected error for missing client_secret")
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://localhost:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("Requests Modify Scopes", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			scopes := strings.Join(srv.config.Scopes, " ")
			for _, scope := range []string{"playlist-modify-public", "playlist-modify-private"} {
				if !strings.Contains(scopes, scope) {
					t.Errorf("expected scope %s, got %s", scope, scopes)
				}
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if authURL == "" {
			t.Error("expected auth URL to be generated")
		}

		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("WithAccessToken", func(t *testing.T) {
			authCreds := map[string]string{
				"access_token": "test_access_token",
			}

			err := srv.Authenticate(context.Background(), authCreds)
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}

			if srv.token == nil {
				t.Fatal("expected token to be set")
			}

			if srv.token.AccessToken != "test_access_token" {
				t.Errorf("expected access token to be 'test_access_token', got %s", srv.token.AccessToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if err == nil {
				t.Error("expected error for missing credentials")
			}
		})
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ Service = srv
		var _ OAuthService = srv
	})

	t.Run("Unauthenticated Requests", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = srv.GetPlaylists(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("ArtistGenres", func(t *testing.T) {
		srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/artists/") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"id":"artist1","name":"Test Artist","genres":["indie rock","indie pop"]}`)
		}))

		genres, err := srv.ArtistGenres(context.Background(), "artist1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(genres) != 2 || genres[0] != "indie rock" {
			t.Errorf("unexpected genres %v", genres)
		}
	})

	t.Run("AudioFeatures", func(t *testing.T) {
		t.Run("omits null entries", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"audio_features":[{"id":"t1","danceability":0.5,"energy":0.6},null]}`)
			}))

			features, err := srv.AudioFeatures(context.Background(), []string{"t1", "t2"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(features) != 1 {
				t.Fatalf("expected 1 feature entry, got %d", len(features))
			}
			if features["t1"].Danceability != 0.5 || features["t1"].Energy != 0.6 {
				t.Errorf("unexpected features %+v", features["t1"])
			}
		})

		t.Run("no request for empty id list", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("unexpected request for empty id list")
			}))

			features, err := srv.AudioFeatures(context.Background(), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(features) != 0 {
				t.Errorf("expected empty map, got %v", features)
			}
		})
	})

	t.Run("SearchTracksByGenre", func(t *testing.T) {
		t.Run("quotes genre in query", func(t *testing.T) {
			var gotQuery string
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query().Get("q")
				fmt.Fprint(w, `{"tracks":{"items":[{"id":"t1","name":"Song","uri":"spotify:track:t1","artists":[{"id":"a1","name":"Artist"}]}],"total":1}}`)
			}))

			tracks, err := srv.SearchTracksByGenre(context.Background(), "indie pop", 10)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if gotQuery != `genre:"indie pop"` {
				t.Errorf("expected quoted genre query, got %q", gotQuery)
			}
			if len(tracks) != 1 || tracks[0].Artist != "Artist" {
				t.Errorf("unexpected tracks %v", tracks)
			}
		})

		t.Run("rejects empty genre", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			_, err := srv.SearchTracksByGenre(context.Background(), "  ", 10)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("clamps oversized limit", func(t *testing.T) {
			var gotLimit string
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotLimit = r.URL.Query().Get("limit")
				fmt.Fprint(w, `{"tracks":{"items":[],"total":0}}`)
			}))

			if _, err := srv.SearchTracksByGenre(context.Background(), "rock", 500); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if gotLimit != "50" {
				t.Errorf("expected limit clamped to 50, got %s", gotLimit)
			}
		})
	})

	t.Run("ReplacePlaylistItems", func(t *testing.T) {
		t.Run("wipes then adds in order", func(t *testing.T) {
			var methods []string
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				methods = append(methods, r.Method)
				w.WriteHeader(http.StatusCreated)
			}))

			err := srv.ReplacePlaylistItems(context.Background(), "pl1", []string{"spotify:track:t1", "spotify:track:t2"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(methods) != 2 || methods[0] != http.MethodPut || methods[1] != http.MethodPost {
				t.Errorf("expected PUT then POST, got %v", methods)
			}
		})

		t.Run("maps 404 to playlist not found", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))

			err := srv.ReplacePlaylistItems(context.Background(), "nope", nil)
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		t.Run("skips local files with empty ids", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"items":[{"track":{"id":"t1","name":"Real"}},{"track":{"id":"","name":"Local File"}}],"total":2,"next":null}`)
			}))

			tracks, err := srv.PlaylistTracks(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(tracks) != 1 || tracks[0].ID != "t1" {
				t.Errorf("expected one real track, got %v", tracks)
			}
		})
	})

	t.Run("Status Mapping", func(t *testing.T) {
		t.Run("401 maps to ErrTokenExpired", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))

			_, err := srv.GetPlaylist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})

		t.Run("404 maps to ErrPlaylistNotFound", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))

			_, err := srv.GetPlaylist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("Retry", func(t *testing.T) {
		t.Run("retries 429 with Retry-After", func(t *testing.T) {
			var calls atomic.Int32
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				fmt.Fprint(w, `{"id":"pl1","name":"Recovered","tracks":{"total":0}}`)
			}))

			playlist, err := srv.GetPlaylist(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected success after retry, got %v", err)
			}
			if playlist.Name != "Recovered" {
				t.Errorf("unexpected playlist %+v", playlist)
			}
			if calls.Load() != 2 {
				t.Errorf("expected 2 attempts, got %d", calls.Load())
			}
		})

		t.Run("gives up after max retries", func(t *testing.T) {
			var calls atomic.Int32
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))

			_, err := srv.GetPlaylist(context.Background(), "pl1")
			if err == nil {
				t.Fatal("expected error after exhausting retries")
			}
			if calls.Load() != int32(srv.maxRetries) {
				t.Errorf("expected %d attempts, got %d", srv.maxRetries, calls.Load())
			}
		})
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})
		if srv.onTokenRefresh == nil {
			t.Error("expected callback to be set")
		}

		srv.SetTokenRefreshCallback(nil)
		if srv.onTokenRefresh != nil {
			t.Error("expected callback to be nil")
		}
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("calls callback on first token fetch", func(t *testing.T) {
			callbackCalled := false
			var capturedToken *oauth2.Token

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callbackCalled = true
					capturedToken = token
				},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !callbackCalled {
				t.Error("expected callback to be called on first fetch")
			}
			if capturedToken == nil || capturedToken.AccessToken != "test_token" {
				t.Errorf("expected captured token 'test_token', got %+v", capturedToken)
			}
			if token.AccessToken != "test_token" {
				t.Errorf("expected returned token 'test_token', got %s", token.AccessToken)
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			callCount := 0

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "token1"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
				},
			}

			_, _ = source.Token()
			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if callCount != 2 {
				t.Errorf("expected callback called twice, got %d", callCount)
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("doesn't call callback when token unchanged", func(t *testing.T) {
			callCount := 0

			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "same_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					callCount++
				},
			}

			source.Token()
			source.Token()
			source.Token()

			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			mockSource := &mockTokenSource{
				err: errors.New("token source error"),
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if err == nil {
				t.Fatal("expected error from source")
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})

		t.Run("handles callback panic gracefully", func(t *testing.T) {
			mockSource := &mockTokenSource{
				token: &oauth2.Token{AccessToken: "test_token"},
			}

			source := &refreshableTokenSource{
				source: mockSource,
				callback: func(token *oauth2.Token) {
					panic("callback panic")
				},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token.AccessToken != "test_token" {
				t.Error("expected token despite panicking callback")
			}
		})
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
