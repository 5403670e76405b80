package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger state and last sync",
	RunE:  statusAction,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusAction(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.Log.Level)

	led, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer closeLedger()

	fmt.Printf("Ledger:  %s (%s)\n", cfg.Ledger.Path, cfg.Ledger.Backend)
	fmt.Printf("Synced:  %d posts\n", led.SyncedCount())
	fmt.Printf("Skipped: %d posts\n", led.SkippedCount())

	if last, ok := led.LastSyncTime(); ok {
		fmt.Printf("Last sync: %s\n", last.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last sync: never")
	}
	if uri := led.LastProcessed(); uri != "" {
		fmt.Printf("Last post: %s\n", uri)
	}
	return nil
}
