// Package models defines the data model for playlist analysis.
//
// Domain types ([Track], [PlaylistSnapshot], [AverageProfile]) are plain
// value types assembled per run. [PersistedTrack] wraps a Track for the
// SQLite feature cache and implements [Model].
package models
