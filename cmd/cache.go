package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/kurgg/spm/internal/repositories"
	"github.com/kurgg/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// openCache opens the configured database and wraps it in a track repository.
func (r *Runner) openCache(configPath string) (*sql.DB, *repositories.TrackRepository, error) {
	config, err := r.loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(config.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("database not found at %s, run 'spm setup database' first", config.Database.Path)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, repositories.NewTrackRepository(db), nil
}

// CacheStats reports how many enriched tracks are cached locally.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openCache(cmd.String("config"))
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := repo.Count()
	if err != nil {
		return fmt.Errorf("failed to count cached tracks: %w", err)
	}

	r.writePlain("Cached tracks: %d\n", count)
	return nil
}

// CacheClear soft-deletes all cached tracks.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openCache(cmd.String("config"))
	if err != nil {
		return err
	}
	defer db.Close()

	cleared, err := repo.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Infof("cleared %d cached tracks", cleared)
	r.writePlain("✓ Cleared %d cached tracks\n", cleared)
	return nil
}
