// Package analysis implements playlist profiling and refresh operations.
//
// The core abstraction is [Analyzer], which builds a snapshot of a playlist
// (tracks enriched with artist genres and audio features), reduces it to an
// average profile, finds catalog tracks matching that profile, and replaces
// the playlist contents. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package analysis
