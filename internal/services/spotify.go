// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify caps audio-features and playlist item batches at 100 ids.
	maxBatchSize = 100
	// Search requests cap out at 50 results per page.
	maxSearchLimit = 50

	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	requestsPerSecond  = 5
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyAudioFeatures represents the audio-features resource for a track.
type SpotifyAudioFeatures struct {
	ID           string  `json:"id"`
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTrackRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Owner       owner            `json:"owner"`
	Public      bool             `json:"public"`
	Tracks      playlistTrackRef `json:"tracks"`
	Images      []SpotifyImage   `json:"images"`
	URI         string           `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

type spotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type spotifyPaginatedPlaylists struct {
	Items  []SpotifyPlaylist `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Next   *string           `json:"next"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist, artist,
// audio feature, and search operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	maxRetries     int
	baseBackoff    time.Duration
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates with a previously obtained OAuth2 token.
// The HTTP client refreshes the token transparently and reports refreshed
// tokens via the refresh callback when set.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback server.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a callback invoked whenever the underlying
// token source produces a new token, so callers can persist it.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// doRequest performs an authenticated, rate-limited HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	apiURL := s.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, endpoint)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// errNotFound marks 404 responses; callers translate it to the
// playlist/track/feature specific sentinel.
var errNotFound = fmt.Errorf("resource not found")

// doRequestWithRetry retries throttled (429) and server-error responses with
// exponential backoff, honoring Retry-After when present.
func (s *SpotifyService) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var bodyBytes []byte
	if req.Body != nil {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(req.Body); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
		bodyBytes = buf.Bytes()
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req.Body = newReadCloser(bodyBytes)

		resp, err := s.httpClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		if resp != nil {
			resp.Body.Close()
		}

		if attempt == s.maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("request failed after %d attempts: %w", s.maxRetries, err)
			}
			return nil, fmt.Errorf("request failed after %d attempts: status %d", s.maxRetries, resp.StatusCode)
		}

		backoff := s.baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts", s.maxRetries)
}

func newReadCloser(data []byte) *readCloser {
	return &readCloser{Reader: bytes.NewReader(data)}
}

type readCloser struct{ *bytes.Reader }

func (r *readCloser) Close() error { return nil }

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(retryAfter, "%d", &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Service interface implementation

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", maxSearchLimit, offset)

		var page spotifyPaginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			all = append(all, toPlaylist(sp))
		}

		if page.Next == nil {
			break
		}
		offset += maxSearchLimit
	}

	return all, nil
}

// GetPlaylist retrieves a specific playlist's metadata by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, playlistErr(err, playlistID)
	}

	pl := toPlaylist(sp)
	return &pl, nil
}

// PlaylistTracks retrieves a playlist's tracks in order, following pagination.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), maxBatchSize, offset)

		var page spotifyPaginatedPlaylistTracks
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, playlistErr(err, playlistID)
		}

		for _, item := range page.Items {
			if item.Track.ID == "" {
				// Local files and removed tracks come back with empty ids.
				continue
			}
			tracks = append(tracks, toTrack(item.Track))
		}

		if page.Next == nil {
			break
		}
		offset += maxBatchSize
	}

	return tracks, nil
}

// ArtistGenres retrieves the genre tags for an artist.
func (s *SpotifyService) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	endpoint := fmt.Sprintf("/artists/%s", url.PathEscape(artistID))

	var artist SpotifyArtist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &artist); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: artist %s", shared.ErrTrackNotFound, artistID)
		}
		return nil, err
	}

	return artist.Genres, nil
}

// AudioFeatures retrieves danceability/energy for the given tracks, batching
// requests at the API's 100-id limit. Tracks the service has no analysis for
// are omitted from the result.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeatures, error) {
	features := make(map[string]AudioFeatures, len(trackIDs))

	for start := 0; start < len(trackIDs); start += maxBatchSize {
		end := min(start+maxBatchSize, len(trackIDs))
		batch := trackIDs[start:end]

		endpoint := fmt.Sprintf("/audio-features?ids=%s", url.QueryEscape(strings.Join(batch, ",")))

		var response struct {
			AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
		}
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: batch %d-%d", shared.ErrFeaturesNotFound, start, end)
			}
			return nil, err
		}

		for _, f := range response.AudioFeatures {
			if f == nil || f.ID == "" {
				// Null entries mean Spotify has no analysis for that track.
				continue
			}
			features[f.ID] = AudioFeatures{
				Danceability: f.Danceability,
				Energy:       f.Energy,
			}
		}
	}

	return features, nil
}

// SearchTracksByGenre searches for tracks tagged with the given genre.
func (s *SpotifyService) SearchTracksByGenre(ctx context.Context, genre string, limit int) ([]models.Track, error) {
	if strings.TrimSpace(genre) == "" {
		return nil, fmt.Errorf("%w: empty genre", shared.ErrInvalidArgument)
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := fmt.Sprintf("genre:%q", genre)
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
			Total int            `json:"total"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, toTrack(item))
	}

	return tracks, nil
}

// ReplacePlaylistItems clears the playlist and inserts the given track URIs in
// order. The clear and each insert batch are separate requests, mirroring the
// API's 100-item cap on additions.
func (s *SpotifyService) ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	wipe := map[string]any{"uris": []string{}}
	if err := s.doRequest(ctx, http.MethodPut, endpoint, wipe, nil); err != nil {
		return playlistErr(err, playlistID)
	}

	for start := 0; start < len(uris); start += maxBatchSize {
		end := min(start+maxBatchSize, len(uris))
		body := map[string]any{"uris": uris[start:end]}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return playlistErr(err, playlistID)
		}
	}

	return nil
}

func toPlaylist(sp SpotifyPlaylist) models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
}

func toTrack(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:    st.ID,
		URI:   st.URI,
		Title: st.Name,
		Album: st.Album.Name,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
		track.ArtistID = st.Artists[0].ID
	}
	return track
}

func isNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

func playlistErr(err error, playlistID string) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return err
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports token
// changes through a callback so refreshed tokens can be persisted.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	if r.callback != nil && token.AccessToken != r.last {
		r.last = token.AccessToken
		func() {
			defer func() { _ = recover() }()
			r.callback(token)
		}()
	} else {
		r.last = token.AccessToken
	}

	return token, nil
}
