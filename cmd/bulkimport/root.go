package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	serverURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "bulkimport",
	Short: "Import large media selections into a library",
	Long: `bulkimport - batch import engine for large media selections

Imports thousands of audio and video files in memory-bounded batches,
validating each file, skipping duplicates, and reporting per-file
failures with recovery hints.

Run 'bulkimport serve' to drive imports over HTTP.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: discovered)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8485", "Server URL for remote commands")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("bulkimport {{.Version}}\n")
}
