package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/bluesky"
	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/mastodon"
	"github.com/hossain-khan/social-sync/internal/syncer"
)

const summaryRounding = 10 * time.Millisecond

var (
	runDryRun   bool
	runMaxPosts int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sync recent Bluesky posts to Mastodon",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "preview without publishing or recording")
	runCmd.Flags().IntVar(&runMaxPosts, "max-posts", 0, "override sync.max_posts for this run")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.Log.Level)
	ctx := cmd.Context()

	led, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer closeLedger()

	if cfg.Bluesky.AppPassword == "" {
		return fmt.Errorf("bluesky app password not set (export %s)", cfg.Bluesky.AppPasswordEnv)
	}
	if cfg.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon access token not set (export %s)", cfg.Mastodon.AccessTokenEnv)
	}

	bsky := bluesky.NewClient(cfg.Bluesky.PDS, log)
	if err := bsky.Login(ctx, cfg.Bluesky.Handle, cfg.Bluesky.AppPassword); err != nil {
		return fmt.Errorf("bluesky login: %w", err)
	}

	masto := mastodon.NewClient(cfg.Mastodon.Server, cfg.Mastodon.AccessToken, log)
	if _, err := masto.VerifyCredentials(ctx); err != nil {
		return fmt.Errorf("mastodon auth: %w", err)
	}

	opts := syncer.Options{
		OwnDID:             bsky.DID(),
		SyncStart:          cfg.StartTime(),
		MaxPosts:           cfg.Sync.MaxPosts,
		Sentinel:           cfg.Sync.NoSyncTag,
		DisableAttribution: cfg.Sync.DisableAttribution,
		SyncVideos:         cfg.Sync.SyncVideos,
		PostDelay:          cfg.Sync.PostDelay.Duration,
		UploadDelay:        cfg.Sync.UploadDelay.Duration,
		DryRun:             runDryRun || cfg.Sync.DryRun,
	}
	if runMaxPosts > 0 {
		opts.MaxPosts = runMaxPosts
	}

	summary, err := syncer.New(bsky, statusPublisher{masto}, led, opts, log).Run(ctx)
	if err != nil {
		return err
	}

	mode := "Synced"
	if summary.DryRun {
		mode = "Would sync"
	}
	fmt.Printf("%s %d of %d posts (%d skipped, %d failed) in %s.\n",
		mode, summary.Synced, summary.Total, summary.Skipped, summary.Failed,
		summary.Duration.Round(summaryRounding))
	if summary.Failed > 0 {
		return fmt.Errorf("%d posts failed to sync", summary.Failed)
	}
	return nil
}

// statusPublisher adapts the Mastodon client to the syncer's publisher
// port.
type statusPublisher struct {
	client *mastodon.Client
}

func (p statusPublisher) Publish(ctx context.Context, status syncer.Status) (string, error) {
	return p.client.Publish(ctx, mastodon.StatusRequest{
		Text:        status.Text,
		InReplyToID: status.InReplyToID,
		MediaIDs:    status.MediaIDs,
		Sensitive:   status.Sensitive,
		SpoilerText: status.SpoilerText,
		Language:    status.Language,
	})
}

func (p statusPublisher) UploadMedia(ctx context.Context, data []byte, mimeType, description string) (string, error) {
	return p.client.UploadMedia(ctx, data, mimeType, description)
}
