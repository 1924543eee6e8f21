// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist analysis:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [AnalyzeView] : Monitor real-time progress while tracks and features are fetched
//  3. [ProfileView] : Review the computed average profile and confirm a refresh
//  4. [RefreshView] : Monitor search and replacement progress
//  5. [ResultView] : Display the outcome of the refresh
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the Analyzer, providing
// non-blocking status reporting during long-running fetches.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
