package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/bluesky"
	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/mastodon"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and platform connectivity",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true
	ctx := cmd.Context()

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		fmt.Println("\nSome checks failed.")
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (%s -> %s)", cfg.Bluesky.Handle, cfg.Mastodon.Server)
	log := newLogger("error")

	// Secrets
	if cfg.Bluesky.AppPassword == "" {
		printCheck(false, "bluesky app password (export %s)", cfg.Bluesky.AppPasswordEnv)
		ok = false
	} else {
		printCheck(true, "bluesky app password")
	}
	if cfg.Mastodon.AccessToken == "" {
		printCheck(false, "mastodon access token (export %s)", cfg.Mastodon.AccessTokenEnv)
		ok = false
	} else {
		printCheck(true, "mastodon access token")
	}

	// Ledger
	led, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		printCheck(false, "ledger: %v", err)
		ok = false
	} else {
		closeLedger()
		printCheck(true, "ledger %s (%d synced, %d skipped)",
			cfg.Ledger.Path, led.SyncedCount(), led.SkippedCount())
	}

	// Bluesky session
	if cfg.Bluesky.AppPassword != "" {
		bsky := bluesky.NewClient(cfg.Bluesky.PDS, log)
		if err := bsky.Login(ctx, cfg.Bluesky.Handle, cfg.Bluesky.AppPassword); err != nil {
			printCheck(false, "bluesky session: %v", err)
			ok = false
		} else {
			printCheck(true, "bluesky session (%s)", bsky.DID())
		}
	}

	// Mastodon credentials
	var username string
	if cfg.Mastodon.AccessToken != "" {
		masto := mastodon.NewClient(cfg.Mastodon.Server, cfg.Mastodon.AccessToken, log)
		username, err = masto.VerifyCredentials(ctx)
		if err != nil {
			printCheck(false, "mastodon credentials: %v", err)
			ok = false
		} else {
			printCheck(true, "mastodon credentials (@%s)", username)
		}
	}

	// Destination visibility via the account's public RSS feed.
	if username != "" {
		checkDestinationFeed(cfg.Mastodon.Server, username)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// checkDestinationFeed probes the Mastodon account's public RSS feed,
// which confirms the account is discoverable and shows what readers
// see. Non-fatal: some instances disable RSS.
func checkDestinationFeed(server, username string) {
	feedURL := fmt.Sprintf("%s/@%s.rss", server, username)
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 10 * time.Second}

	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		printInfo("public feed %s unreachable: %v", feedURL, err)
		return
	}
	printInfo("public feed has %d items", len(feed.Items))
	if len(feed.Items) > 0 && feed.Items[0].PublishedParsed != nil {
		printInfo("latest public status: %s", feed.Items[0].PublishedParsed.Format("2006-01-02 15:04"))
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
