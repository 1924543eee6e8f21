package services

import (
	"context"

	"github.com/kurgg/spm/internal/models"
	"golang.org/x/oauth2"
)

// AudioFeatures holds the normalized analysis scores for a single track.
type AudioFeatures struct {
	Danceability float64
	Energy       float64
}

// Service defines the music catalog operations the analyzer depends on.
type Service interface {
	// Authenticate performs OAuth or token-based authentication with the service.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves a specific playlist's metadata by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks retrieves a playlist's tracks in order.
	// Genre and audio feature fields are left unfilled.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// ArtistGenres retrieves the genre tags for an artist.
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)

	// AudioFeatures retrieves danceability/energy for up to 100 tracks per batch.
	// Tracks without retrievable features are absent from the result map.
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeatures, error)

	// SearchTracksByGenre searches the catalog for tracks tagged with the genre.
	// Returns at most limit tracks; the match is approximate, not exact.
	SearchTracksByGenre(ctx context.Context, genre string, limit int) ([]models.Track, error)

	// ReplacePlaylistItems clears the playlist and inserts the given track URIs in order.
	// Destructive: the previous contents are not recoverable.
	ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is implemented by services that authenticate via OAuth2
// authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 config for callback handling.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
