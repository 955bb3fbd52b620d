// Package logging builds the application logger from config.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/soundhaven/feedsync/pkg/config"
)

// NewLogger creates a configured logger from logging settings.
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.EnableCaller)

	return logger
}
