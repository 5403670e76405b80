// Package cli provides the command-line interface for social-sync.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/ledger/jsonfile"
	"github.com/hossain-khan/social-sync/internal/ledger/sqlitestore"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "social-sync",
	Short: "Cross-post from Bluesky to Mastodon",
	Long:  "social-sync reads your recent Bluesky posts, converts them to Mastodon statuses with media, threading, and attribution, and publishes the ones you have not synced yet.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("social-sync %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".social-sync", "directory holding config.yaml")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// openLedger opens the configured ledger backend.
func openLedger(cfg *config.Config, log zerolog.Logger) (*ledger.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		led, err := ledger.Open(store, log)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return led, func() { _ = store.Close() }, nil
	default:
		store, err := jsonfile.New(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open json ledger: %w", err)
		}
		led, err := ledger.Open(store, log)
		if err != nil {
			return nil, nil, err
		}
		return led, func() {}, nil
	}
}
