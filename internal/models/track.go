package models

import (
	"fmt"
	"strings"
	"time"
)

// PersistedTrack wraps a [Track] with persistence metadata for the feature cache.
type PersistedTrack struct {
	id        string
	sequence  int
	service   string
	serviceID string
	track     Track
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedTrack creates a PersistedTrack from a service-scoped track DTO.
func NewPersistedTrack(sequence int, service, serviceID string, track Track) *PersistedTrack {
	now := time.Now()
	return &PersistedTrack{
		sequence:  sequence,
		service:   service,
		serviceID: serviceID,
		track:     track,
		createdAt: now,
		updatedAt: now,
	}
}

func (t *PersistedTrack) ID() string            { return t.id }
func (t *PersistedTrack) Sequence() int         { return t.sequence }
func (t *PersistedTrack) Service() string       { return t.service }
func (t *PersistedTrack) ServiceID() string     { return t.serviceID }
func (t *PersistedTrack) Track() Track          { return t.track }
func (t *PersistedTrack) Title() string         { return t.track.Title }
func (t *PersistedTrack) Artist() string        { return t.track.Artist }
func (t *PersistedTrack) ArtistID() string      { return t.track.ArtistID }
func (t *PersistedTrack) Danceability() float64 { return t.track.Danceability }
func (t *PersistedTrack) Energy() float64       { return t.track.Energy }
func (t *PersistedTrack) CreatedAt() time.Time  { return t.createdAt }
func (t *PersistedTrack) UpdatedAt() time.Time  { return t.updatedAt }
func (t *PersistedTrack) DeletedAt() *time.Time { return t.deletedAt }

// GenresRaw returns the genre list in its comma-joined storage form.
func (t *PersistedTrack) GenresRaw() string { return strings.Join(t.track.Genres, ",") }

func (t *PersistedTrack) SetID(id string)              { t.id = id }
func (t *PersistedTrack) SetUpdatedAt(ts time.Time)    { t.updatedAt = ts }
func (t *PersistedTrack) SetDeletedAt(ts *time.Time)   { t.deletedAt = ts }
func (t *PersistedTrack) SetGenresRaw(raw string)      { t.track.Genres = SplitGenres(raw) }
func (t *PersistedTrack) SetCreatedAt(ts time.Time)    { t.createdAt = ts }

// Validate checks persistence invariants before a write.
func (t *PersistedTrack) Validate() error {
	if t.service == "" {
		return fmt.Errorf("track service is required")
	}
	if t.serviceID == "" {
		return fmt.Errorf("track service id is required")
	}
	if t.track.Title == "" {
		return fmt.Errorf("track title is required")
	}
	if t.track.Danceability < 0 || t.track.Danceability > 1 {
		return fmt.Errorf("danceability out of range: %f", t.track.Danceability)
	}
	if t.track.Energy < 0 || t.track.Energy > 1 {
		return fmt.Errorf("energy out of range: %f", t.track.Energy)
	}
	return nil
}

// SplitGenres parses the comma-joined storage form back into a genre list.
func SplitGenres(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}
