package repositories

import (
	"fmt"
	"strings"

	"github.com/kurgg/spm/internal/models"
)

// FeatureCacheAdapter implements analysis.FeatureCache using TrackRepository.
//
// Provides read-through caching of enriched tracks with deduplication via the
// service+service_id unique constraint. Duplicate stores are silently ignored.
type FeatureCacheAdapter struct {
	repo *TrackRepository
}

// NewFeatureCacheAdapter creates a new FeatureCacheAdapter with the given repository
func NewFeatureCacheAdapter(repo *TrackRepository) *FeatureCacheAdapter {
	return &FeatureCacheAdapter{repo: repo}
}

// Lookup returns the cached track for a service-scoped id, if present.
func (a *FeatureCacheAdapter) Lookup(service, serviceID string) (*models.Track, bool) {
	persisted, err := a.repo.GetByServiceID(service, serviceID)
	if err != nil || persisted == nil {
		return nil, false
	}

	track := persisted.Track()
	return &track, true
}

// Store caches an enriched track. Returns nil if the track already exists.
func (a *FeatureCacheAdapter) Store(service, serviceID string, track models.Track) error {
	if existing, err := a.repo.GetByServiceID(service, serviceID); err == nil && existing != nil {
		return nil
	}

	persisted := models.NewPersistedTrack(0, service, serviceID, track)

	if err := a.repo.Create(persisted); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache track: %w", err)
	}

	return nil
}
