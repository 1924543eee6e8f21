package models

// Track represents a playlist track enriched with artist genres and audio features.
//
// Danceability and Energy are normalized [0,1] analysis scores. Genres belong
// to the track's primary artist, not the track itself.
type Track struct {
	ID           string   `json:"id"`
	URI          string   `json:"uri"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	ArtistID     string   `json:"artist_id"`
	Album        string   `json:"album,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	Danceability float64  `json:"danceability"`
	Energy       float64  `json:"energy"`
}

// Playlist represents playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// PlaylistSnapshot is the ordered track listing of one playlist, rebuilt on
// every invocation and never persisted.
type PlaylistSnapshot struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
	// Skipped counts tracks dropped for missing genre or feature data.
	Skipped int `json:"skipped,omitempty"`
}

// AverageProfile summarizes a playlist: arithmetic mean danceability/energy
// and the most frequent genre across all tracks. Immutable once computed.
type AverageProfile struct {
	Genre        string   `json:"genre"`
	Subgenres    []string `json:"subgenres,omitempty"`
	Danceability float64  `json:"danceability"`
	Energy       float64  `json:"energy"`
	TrackCount   int      `json:"track_count"`
}
