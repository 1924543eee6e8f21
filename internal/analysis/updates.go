package analysis

import (
	"fmt"

	"github.com/kurgg/spm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	FetchTracks
	FetchDetails
	Compute
	SearchCatalog
	ReplaceItems
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case FetchDetails:
		return "fetch_details"
	case Compute:
		return "compute"
	case SearchCatalog:
		return "search_catalog"
	case ReplaceItems:
		return "replace_items"
	default:
		return ""
	}
}

func fetchPlaylistUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", id),
	}
}

func fetchTracksUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listing tracks for %s (%d total)...", pl.Name, pl.TrackCount),
		Data:    pl,
	}
}

func fetchDetailsUpdate(step, total int, tr *models.Track) ProgressUpdate {
	if tr == nil {
		return ProgressUpdate{
			Phase:   FetchDetails,
			Step:    step,
			Total:   total,
			Message: "Fetching genres and audio features...",
		}
	}
	return ProgressUpdate{
		Phase:   FetchDetails,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Title),
	}
}

func computeUpdate(profile *models.AverageProfile) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compute,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Profile: %s (danceability %.2f, energy %.2f)", profile.Genre, profile.Danceability, profile.Energy),
		Data:    profile,
	}
}

func searchUpdate(genre string, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchCatalog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching catalog for %q tracks (%d candidates)...", genre, found),
	}
}

func replaceUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReplaceItems,
		Step:    step,
		Total:   total,
		Message: "Replacing playlist contents...",
	}
}
