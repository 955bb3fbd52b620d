package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soundhaven/feedsync/internal/api"
	"github.com/soundhaven/feedsync/internal/database"
	"github.com/soundhaven/feedsync/internal/services/downloads"
	"github.com/soundhaven/feedsync/internal/services/episodes"
	"github.com/soundhaven/feedsync/internal/services/refresh"
	"github.com/soundhaven/feedsync/internal/services/shows"
	"github.com/soundhaven/feedsync/pkg/download"
)

var (
	serverHost string
	serverPort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the feedsync server",
	Long: `Start the feedsync HTTP server.

The server exposes the subscription and episode API and runs the
background refresh loop and the media download workers.

Example:
  feedsync serve
  feedsync serve --port 9090
  feedsync serve --host 0.0.0.0 --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}

	if serverHost == "" {
		serverHost = appConfig.Server.Host
	}
	if serverPort == 0 {
		serverPort = appConfig.Server.Port
	}

	db, err := database.InitializeWithMigrations()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	episodeRepo := episodes.NewRepository(db.DB)
	showRepo := shows.NewRepository(db.DB)

	var queue *downloads.Queue
	var mergeQueue episodes.DownloadQueue
	if appConfig.Downloads.Enabled {
		fetcher := download.NewDownloader(download.Options{
			MediaDir:  appConfig.Downloads.MediaDir,
			MaxSize:   appConfig.Downloads.MaxFileSize,
			Timeout:   appConfig.Downloads.Timeout,
			UserAgent: appConfig.Ingest.UserAgent,
		}, log)
		queue = downloads.NewQueue(fetcher, episodeRepo, appConfig.Downloads.Workers, appConfig.Downloads.QueueSize, log)
		queue.Start(ctx)
		defer queue.Stop()
		mergeQueue = queue
	}

	merger := episodes.NewMerger(episodeRepo, mergeQueue, log)
	refresher := refresh.NewService(showRepo, merger, refresh.Options{
		UserAgent:      appConfig.Ingest.UserAgent,
		Timeout:        appConfig.Ingest.FetchTimeout,
		UpdateExisting: appConfig.Ingest.UpdateExisting,
		AutoDownload:   appConfig.Downloads.AutoDownload,
		Interval:       appConfig.Refresh.Interval,
		Workers:        appConfig.Refresh.Workers,
		RequestsPerSec: appConfig.Refresh.RequestsPerSec,
	}, log)
	refresher.Start(ctx)
	defer refresher.Stop()

	server := api.NewServer(fmt.Sprintf("%s:%d", serverHost, serverPort), appConfig, api.Services{
		Shows:     shows.NewService(showRepo),
		Episodes:  episodes.NewService(episodeRepo),
		Refresher: refresher,
		DB:        db,
	}, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server error: %w", err)
		}
	}()

	log.WithField("addr", fmt.Sprintf("%s:%d", serverHost, serverPort)).Info("server ready")

	select {
	case <-stop:
		log.Info("shutting down")
	case err := <-serverErr:
		log.WithError(err).Error("server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
