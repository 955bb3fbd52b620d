package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soundhaven/feedsync/pkg/config"
	"github.com/soundhaven/feedsync/pkg/logging"
)

var (
	appConfig *config.Config
	log       *logrus.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "Podcast feed ingestion and sync service",
	Long: `feedsync tracks podcast RSS feeds and keeps a local episode library
in sync with them.

Feeds are parsed incrementally: on each refresh only the episodes that are
new since the last sync are read, merged and stored. Playback state on
stored episodes is never overwritten by a refresh.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// NewRootCmd returns the root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig initializes configuration and logging. Commands that need them
// call this at the top of their RunE.
func loadConfig(cmd *cobra.Command) error {
	if err := config.Init(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		appConfig.Logging.Level = level
	}
	log = logging.NewLogger(appConfig.Logging)

	return nil
}
