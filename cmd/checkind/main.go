package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"checkin-backend/config"
)

var configPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "checkind",
		Short:         "NFC badge check-in backend",
		Long:          `checkind turns NFC badge scans from keyboard-wedge readers into training attendance records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default $CONFIG_PATH or ./config/config.yaml)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newScanCommand())
	return cmd
}

// loadConfig reads the config file and applies its log level.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)
	logrus.Infof("Configuration loaded from %s", path)
	return cfg, nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err == nil {
		logrus.Debug("Loaded environment from .env")
	}

	if err := newRootCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}
