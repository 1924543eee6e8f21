package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurgg/spm/internal/analysis"
	"github.com/kurgg/spm/internal/formatter"
	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistList lists Spotify playlists with optional limit.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := r.spotify.GetPlaylists(ctx)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed {
			if authErr != nil {
				return authErr
			}
			if playlists, err = r.spotify.GetPlaylists(ctx); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
		} else {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	if limit > 0 && int(limit) < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}

// PlaylistAnalyze computes and renders a playlist's average profile.
func (r *Runner) PlaylistAnalyze(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	markdown := cmd.Bool("markdown")

	snapshot, profile, err := r.analyze(ctx, cmd, playlistID)
	if err != nil {
		return err
	}

	if snapshot.Skipped > 0 {
		r.logger.Warnf("%d tracks skipped due to missing data", snapshot.Skipped)
	}

	if useJSON {
		return r.writeJSON(profile, pretty)
	}

	if markdown {
		return r.writePlain("%s", formatter.ProfileToMarkdown(snapshot.Playlist, profile))
	}

	return r.writePlain("%s", formatter.ProfileToText(snapshot.Playlist, profile))
}

// PlaylistRefresh replaces a playlist's contents with tracks matching its
// average profile.
//
// The replacement is destructive and gated behind a confirmation prompt
// unless --yes is passed.
func (r *Runner) PlaylistRefresh(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	limit := int(cmd.Int("limit"))
	skipConfirm := cmd.Bool("yes")

	snapshot, profile, err := r.analyze(ctx, cmd, playlistID)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", formatter.ProfileToText(snapshot.Playlist, profile))

	if limit <= 0 {
		limit = len(snapshot.Tracks)
	}

	if !skipConfirm {
		if !r.confirm("Replace all tracks in %q with up to %d tracks matching this profile? This cannot be undone.",
			snapshot.Playlist.Name, limit) {
			r.writePlain("Aborted. Playlist unchanged.\n")
			return nil
		}
	}

	progress := r.logProgress(ctx)

	matches, err := r.analyzer.FindMatchingTracks(ctx, progress, profile, limit)
	if err != nil {
		return err
	}

	r.logger.Infof("found %d matching tracks for genre %q", len(matches), profile.Genre)

	if err := r.analyzer.Refresh(ctx, progress, playlistID, matches); err != nil {
		return fmt.Errorf("failed to replace playlist contents: %w", err)
	}

	r.writePlainln("✓ Playlist refreshed")
	r.writePlain("  Playlist: %s\n", snapshot.Playlist.Name)
	r.writePlain("  Replaced with %d tracks matching genre %q\n\n", len(matches), profile.Genre)
	r.writePlain("%s", formatter.TracksToText(matches))

	return nil
}

// PlaylistExport writes a playlist's analyzed tracks and profile to files.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	outputBase := cmd.String("output")

	snapshot, profile, err := r.analyze(ctx, cmd, playlistID)
	if err != nil {
		return err
	}

	files, err := formatter.WriteSnapshotCSV(snapshot, profile, outputBase)
	if err != nil {
		return err
	}

	r.logger.Infof("playlist %v exported with %v tracks", playlistID, len(snapshot.Tracks))

	r.writePlain("✓ Playlist exported\n")
	for _, f := range files {
		r.writePlain("  %s\n", f)
	}

	return nil
}

// analyze runs the snapshot-and-average pipeline with reauth handling.
func (r *Runner) analyze(ctx context.Context, cmd *cli.Command, playlistID string) (*models.PlaylistSnapshot, *models.AverageProfile, error) {
	if playlistID == "" {
		return nil, nil, fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	if r.spotify == nil {
		return nil, nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Infof("analyzing playlist %v", playlistID)

	progress := r.logProgress(ctx)

	snapshot, profile, err := r.analyzer.Analyze(ctx, progress, playlistID)
	if err != nil {
		if reauthed, authErr := r.handleAuthError(ctx, err, cmd); reauthed {
			if authErr != nil {
				return nil, nil, authErr
			}
			if snapshot, profile, err = r.analyzer.Analyze(ctx, progress, playlistID); err != nil {
				return nil, nil, err
			}
		} else {
			return nil, nil, err
		}
	}

	return snapshot, profile, nil
}

// logProgress drains analyzer progress updates into debug logs so CLI output
// stays clean.
func (r *Runner) logProgress(ctx context.Context) chan analysis.ProgressUpdate {
	progress := make(chan analysis.ProgressUpdate, 50)

	go func() {
		for {
			select {
			case update, ok := <-progress:
				if !ok {
					return
				}
				msg := update.Message
				if update.Total > 0 {
					msg = fmt.Sprintf("%s (%d/%d)", msg, update.Step, update.Total)
				}
				r.logger.Debug(strings.ToLower(update.Phase.String()), "detail", msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	return progress
}
