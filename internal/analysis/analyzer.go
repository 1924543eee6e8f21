package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/services"
	"github.com/kurgg/spm/internal/shared"
)

// MissingDataPolicy selects behavior for tracks without retrievable audio
// features: drop the track and continue, or abort the whole run.
type MissingDataPolicy int

const (
	SkipMissing MissingDataPolicy = iota
	AbortOnMissing
)

// ParseMissingDataPolicy maps a config string to a policy.
func ParseMissingDataPolicy(raw string) (MissingDataPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "skip":
		return SkipMissing, nil
	case "abort":
		return AbortOnMissing, nil
	default:
		return SkipMissing, fmt.Errorf("%w: missing_data must be \"skip\" or \"abort\", got %q", shared.ErrInvalidConfig, raw)
	}
}

// FeatureCache is an optional read-through cache for enriched tracks, keyed by
// service and service-scoped track id.
type FeatureCache interface {
	Lookup(service, serviceID string) (*models.Track, bool)
	Store(service, serviceID string, track models.Track) error
}

// Opts configures an Analyzer.
type Opts struct {
	Cache         FeatureCache      // optional
	Policy        MissingDataPolicy // default SkipMissing
	SearchLimit   int               // candidate pool per genre search (default 50)
	FeatureWindow float64           // ± tolerance for matching (default 0.1)
}

// Analyzer profiles playlists against a music catalog [services.Service].
//
// All methods are stateless with respect to the playlist: each run rebuilds
// its snapshot from the service.
type Analyzer struct {
	svc           services.Service
	cache         FeatureCache
	policy        MissingDataPolicy
	searchLimit   int
	featureWindow float64
}

// NewAnalyzer creates an Analyzer backed by the given service.
func NewAnalyzer(svc services.Service, opts Opts) *Analyzer {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 50
	}
	if opts.FeatureWindow <= 0 {
		opts.FeatureWindow = 0.1
	}

	return &Analyzer{
		svc:           svc,
		cache:         opts.Cache,
		policy:        opts.Policy,
		searchLimit:   opts.SearchLimit,
		featureWindow: opts.FeatureWindow,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (a *Analyzer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Snapshot fetches a playlist's tracks and enriches each with its primary
// artist's genres and its audio features.
//
// The cache, when present, is consulted per track before the API and written
// through after fetching. Tracks without retrievable audio features are
// dropped (SkipMissing, counted in Skipped) or abort the run (AbortOnMissing).
// A track whose artist carries no genre tags is kept; it contributes to the
// numeric means but not to the genre tally.
func (a *Analyzer) Snapshot(ctx context.Context, progress chan<- ProgressUpdate, playlistID string) (*models.PlaylistSnapshot, error) {
	if a.svc == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	a.sendProgress(progress, fetchPlaylistUpdate(playlistID))

	playlist, err := a.svc.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	a.sendProgress(progress, fetchTracksUpdate(playlist))

	listed, err := a.svc.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.PlaylistSnapshot{Playlist: *playlist}

	enriched, missing := a.fromCache(listed)

	features, err := a.fetchFeatures(ctx, missing)
	if err != nil {
		return nil, err
	}

	genresByArtist := make(map[string][]string)
	total := len(listed)

	for i := range listed {
		track := listed[i]
		a.sendProgress(progress, fetchDetailsUpdate(i+1, total, &track))

		if cached, ok := enriched[track.ID]; ok {
			snapshot.Tracks = append(snapshot.Tracks, cached)
			continue
		}

		feat, ok := features[track.ID]
		if !ok {
			if a.policy == AbortOnMissing {
				return nil, fmt.Errorf("%w: track %s (%s)", shared.ErrFeaturesNotFound, track.Title, track.ID)
			}
			snapshot.Skipped++
			continue
		}
		track.Danceability = feat.Danceability
		track.Energy = feat.Energy

		genres, err := a.artistGenres(ctx, genresByArtist, track.ArtistID)
		if err != nil {
			if a.policy == AbortOnMissing {
				return nil, err
			}
			snapshot.Skipped++
			continue
		}
		track.Genres = genres

		if a.cache != nil {
			if err := a.cache.Store(a.svc.Name(), track.ID, track); err != nil {
				return nil, fmt.Errorf("failed to cache track %s: %w", track.ID, err)
			}
		}

		snapshot.Tracks = append(snapshot.Tracks, track)
	}

	return snapshot, nil
}

// fromCache partitions listed tracks into cache hits and ids still needing a
// feature fetch.
func (a *Analyzer) fromCache(listed []models.Track) (map[string]models.Track, []string) {
	enriched := make(map[string]models.Track)
	var missing []string

	for _, track := range listed {
		if a.cache != nil {
			if cached, ok := a.cache.Lookup(a.svc.Name(), track.ID); ok {
				enriched[track.ID] = *cached
				continue
			}
		}
		missing = append(missing, track.ID)
	}

	return enriched, missing
}

func (a *Analyzer) fetchFeatures(ctx context.Context, ids []string) (map[string]services.AudioFeatures, error) {
	if len(ids) == 0 {
		return map[string]services.AudioFeatures{}, nil
	}
	return a.svc.AudioFeatures(ctx, ids)
}

// artistGenres memoizes genre lookups per artist within a run.
func (a *Analyzer) artistGenres(ctx context.Context, memo map[string][]string, artistID string) ([]string, error) {
	if artistID == "" {
		return nil, nil
	}
	if genres, ok := memo[artistID]; ok {
		return genres, nil
	}

	genres, err := a.svc.ArtistGenres(ctx, artistID)
	if err != nil {
		return nil, err
	}

	memo[artistID] = genres
	return genres, nil
}

// ComputeAverageProfile reduces a snapshot to its average profile.
//
// Danceability and energy are unweighted arithmetic means over all tracks.
// The genre is the single most frequent genre string across all tracks'
// genre lists, ties broken by first-encountered order; subgenres are the
// observed genres prefixed by it. An empty snapshot is an error, never NaN.
func ComputeAverageProfile(snapshot *models.PlaylistSnapshot) (*models.AverageProfile, error) {
	if snapshot == nil || len(snapshot.Tracks) == 0 {
		return nil, shared.ErrEmptyPlaylist
	}

	var danceSum, energySum float64
	counts := make(map[string]int)
	var order []string

	for _, track := range snapshot.Tracks {
		danceSum += track.Danceability
		energySum += track.Energy

		for _, genre := range track.Genres {
			if _, seen := counts[genre]; !seen {
				order = append(order, genre)
			}
			counts[genre]++
		}
	}

	n := float64(len(snapshot.Tracks))
	profile := &models.AverageProfile{
		Danceability: danceSum / n,
		Energy:       energySum / n,
		TrackCount:   len(snapshot.Tracks),
	}

	best := -1
	for _, genre := range order {
		if counts[genre] > best {
			best = counts[genre]
			profile.Genre = genre
		}
	}

	if profile.Genre != "" {
		seen := make(map[string]struct{})
		for _, genre := range order {
			if genre == profile.Genre {
				continue
			}
			if _, dup := seen[genre]; dup {
				continue
			}
			if strings.HasPrefix(genre, profile.Genre) {
				seen[genre] = struct{}{}
				profile.Subgenres = append(profile.Subgenres, genre)
			}
		}
	}

	return profile, nil
}

// FindMatchingTracks searches the catalog for tracks matching the profile's
// genre whose danceability and energy both fall within the feature window of
// the targets.
//
// Zero candidates from the service and zero survivors of the filter both
// yield [shared.ErrNoMatches], distinguishable from transport failures. Never
// returns more than limit tracks.
func (a *Analyzer) FindMatchingTracks(ctx context.Context, progress chan<- ProgressUpdate, profile *models.AverageProfile, limit int) ([]models.Track, error) {
	if a.svc == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if profile == nil || profile.Genre == "" {
		return nil, fmt.Errorf("%w: profile has no genre", shared.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = a.searchLimit
	}

	candidates, err := a.svc.SearchTracksByGenre(ctx, profile.Genre, a.searchLimit)
	if err != nil {
		return nil, err
	}

	a.sendProgress(progress, searchUpdate(profile.Genre, len(candidates)))

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: genre %q", shared.ErrNoMatches, profile.Genre)
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	features, err := a.svc.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}

	var matched []models.Track
	for _, candidate := range candidates {
		feat, ok := features[candidate.ID]
		if !ok {
			continue
		}

		if math.Abs(feat.Danceability-profile.Danceability) > a.featureWindow {
			continue
		}
		if math.Abs(feat.Energy-profile.Energy) > a.featureWindow {
			continue
		}

		candidate.Danceability = feat.Danceability
		candidate.Energy = feat.Energy
		matched = append(matched, candidate)

		if len(matched) == limit {
			break
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: genre %q, danceability %.2f±%.2f, energy %.2f±%.2f",
			shared.ErrNoMatches, profile.Genre, profile.Danceability, a.featureWindow, profile.Energy, a.featureWindow)
	}

	return matched, nil
}

// Refresh destructively replaces the playlist's contents with the given
// tracks, in order. There is no undo.
func (a *Analyzer) Refresh(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, tracks []models.Track) error {
	if a.svc == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: refusing to replace playlist with nothing", shared.ErrInvalidArgument)
	}

	uris := make([]string, len(tracks))
	for i, track := range tracks {
		uri := track.URI
		if uri == "" {
			uri = "spotify:track:" + track.ID
		}
		uris[i] = uri
	}

	a.sendProgress(progress, replaceUpdate(1, 1))

	return a.svc.ReplacePlaylistItems(ctx, playlistID, uris)
}

// Analyze is the fetch-then-average convenience used by the CLI and TUI.
func (a *Analyzer) Analyze(ctx context.Context, progress chan<- ProgressUpdate, playlistID string) (*models.PlaylistSnapshot, *models.AverageProfile, error) {
	snapshot, err := a.Snapshot(ctx, progress, playlistID)
	if err != nil {
		return nil, nil, err
	}

	profile, err := ComputeAverageProfile(snapshot)
	if err != nil {
		return nil, nil, err
	}

	a.sendProgress(progress, computeUpdate(profile))
	return snapshot, profile, nil
}
