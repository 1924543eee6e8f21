// Package repositories provides the persistence layer for the track feature
// cache.
//
// TrackRepository implements models.Repository[*models.PersistedTrack] over
// SQLite, handling CRUD, soft deletes, and sequence generation. The
// FeatureCacheAdapter narrows it to the read-through cache interface consumed
// by the analysis engine.
package repositories
