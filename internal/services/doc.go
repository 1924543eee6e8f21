// Package services defines interface [Service] for the external music
// catalog and its Spotify implementation.
//
// The interface is the dependency boundary for the analysis engine: every
// network call the tool makes flows through it, so the engine can be tested
// against a double. [SpotifyService] talks to the Spotify Web API directly
// over an [oauth2] HTTP client, with client-side rate limiting and retry on
// throttling responses.
package services
