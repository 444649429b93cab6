package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/pkg/config"
)

var (
	// Version is set during build
	Version = "0.4.0"

	// Global flags
	logLevel  string
	logFormat string
	dataDir   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mirseodb",
	Short: "Single-node relational data store with an HTTP query API",
	Long: `MirseoDB is a single-node relational data store exposing an HTTP
query API over a SQL-like language, with automatic B-tree indexes,
composite indexes, a cost-based planner, and Bloom-filter-backed scans.

Examples:
  mirseodb createdb mydb        # Create a database on disk
  mirseodb serve mydb           # Serve a database over HTTP
  mirseodb tables mydb          # List a database's tables`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log_format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data_dir", "", "data directory (overrides config)")
}

// loadConfig loads the process config and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})
	return cfg, nil
}

func main() {
	Execute()
}
