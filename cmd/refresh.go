package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundhaven/feedsync/internal/database"
	"github.com/soundhaven/feedsync/internal/services/episodes"
	"github.com/soundhaven/feedsync/internal/services/refresh"
	"github.com/soundhaven/feedsync/internal/services/shows"
)

var (
	refreshFeedURL string
	refreshAll     bool
	refreshFull    bool
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh subscribed feeds once",
	Long: `Fetch feeds and merge new episodes into the library, then exit.

By default only episodes newer than the last sync are read. With --full the
whole feed is re-read and stored episode metadata is refreshed from it.

Example:
  feedsync refresh --all
  feedsync refresh --url https://example.com/feed.xml
  feedsync refresh --all --full`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().StringVar(&refreshFeedURL, "url", "", "refresh only the show with this feed URL")
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every subscribed show")
	refreshCmd.Flags().BoolVar(&refreshFull, "full", false, "re-read whole feeds and refresh stored metadata")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if refreshFeedURL == "" && !refreshAll {
		return fmt.Errorf("either --url or --all is required")
	}

	db, err := database.InitializeWithMigrations()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	showRepo := shows.NewRepository(db.DB)
	merger := episodes.NewMerger(episodes.NewRepository(db.DB), nil, log)
	refresher := refresh.NewService(showRepo, merger, refresh.Options{
		UserAgent:      appConfig.Ingest.UserAgent,
		Timeout:        appConfig.Ingest.FetchTimeout,
		UpdateExisting: appConfig.Ingest.UpdateExisting,
		Workers:        appConfig.Refresh.Workers,
		RequestsPerSec: appConfig.Refresh.RequestsPerSec,
	}, log)

	ctx := context.Background()

	if refreshAll {
		return refresher.RefreshAll(ctx, refreshFull)
	}

	show, err := showRepo.GetShowByFeedURL(ctx, refreshFeedURL)
	if err != nil {
		return err
	}

	added, err := refresher.RefreshShow(ctx, show, refreshFull)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d episode(s) for %s\n", added, show.FeedURL)
	return nil
}
