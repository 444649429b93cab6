package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MirseoDB/mirseodb/internal/api"
	"github.com/MirseoDB/mirseodb/internal/engine"
	"github.com/MirseoDB/mirseodb/internal/scanner"
	"github.com/MirseoDB/mirseodb/pkg/config"
)

var (
	servePort int
	serveHost string
)

// serveCmd serves a database over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve [database]",
	Short: "Serve a database over HTTP",
	Long: `Load a database from disk (creating it if missing) and expose it
through the HTTP query API.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runServe(args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
}

// engineOptions maps process config onto engine tuning knobs
func engineOptions(cfg *config.Config) engine.Options {
	opts := engine.DefaultOptions()
	opts.BloomFalsePositiveRate = cfg.Engine.BloomFalsePositiveRate
	opts.ScanOptions = scanner.Options{
		ChunkSize:        cfg.Engine.ScanChunkSize,
		MaxMemoryBytes:   cfg.Engine.ScanMaxMemoryBytes,
		EarlyTermination: cfg.Engine.EarlyTermination,
	}
	return opts
}

// openEngine loads dbName from cfg's data directory, creating the
// database if it does not exist yet
func openEngine(cfg *config.Config, dbName string) (*engine.Engine, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	eng, err := engine.Load(cfg.Data.Dir, dbName, engineOptions(cfg))
	if err == nil {
		return eng, nil
	}
	return engine.CreateDatabase(cfg.Data.Dir, dbName, engineOptions(cfg))
}

func runServe(args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if servePort != 0 {
		cfg.RestAPI.Port = servePort
	}
	if serveHost != "" {
		cfg.RestAPI.Host = serveHost
	}

	dbName := cfg.Data.DefaultDatabase
	if len(args) == 1 {
		dbName = args[0]
	}

	eng, err := openEngine(cfg, dbName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database %q: %v\n", dbName, err)
		os.Exit(1)
	}

	server, err := api.NewServer(eng, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing server: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("MirseoDB v%s serving %q on %s:%d\n", Version, dbName, cfg.RestAPI.Host, cfg.RestAPI.Port)
	if err := server.StartWithContext(ctx, 10*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
