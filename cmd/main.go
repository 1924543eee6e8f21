package main

import (
	"context"
	"errors"
	"os"

	"github.com/kurgg/spm/internal/analysis"
	"github.com/kurgg/spm/internal/repositories"
	"github.com/kurgg/spm/internal/services"
	"github.com/kurgg/spm/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var spotifyService services.Service
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			// Persist refreshed tokens so the next run skips reauthorization.
			svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
				if err := config.Credentials.Spotify.Update(token); err != nil {
					logger.Warn("failed to store refreshed token", "error", err)
					return
				}
				if err := shared.SaveConfig("config.toml", config); err != nil {
					logger.Warn("failed to persist refreshed token", "error", err)
				}
			})

			if config.Credentials.Spotify.AccessToken != "" {
				if err := svc.OAuthenticate(ctx, config.Credentials.Spotify.Token()); err != nil {
					logger.Warn("failed to apply saved tokens", "error", err)
				}
			}
			spotifyService = svc
		}
	}

	var cache analysis.FeatureCache
	if _, err := os.Stat(config.Database.Path); err == nil {
		if db, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			cache = repositories.NewFeatureCacheAdapter(repositories.NewTrackRepository(db))
		} else {
			logger.Warn("failed to open track cache", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotifyService,
		Cache:   cache,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "spm",
		Usage:    "Analyze Spotify playlists and refresh them with profile-matched tracks",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNoMatches) || errors.Is(err, shared.ErrEmptyPlaylist) {
			logger.Warnf("%v", err)
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
