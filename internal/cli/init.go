package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
		return nil
	}
	fmt.Printf("Initialized %s. Edit config.yaml, then export your secrets and run 'social-sync run'.\n", configDir)
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# social-sync configuration

bluesky:
  handle: your-handle.bsky.social
  app_password_env: BLUESKY_APP_PASSWORD
  # pds: https://bsky.social

mastodon:
  server: https://mastodon.social
  access_token_env: MASTODON_ACCESS_TOKEN

sync:
  max_posts: 10
  # Oldest post to consider, YYYY-MM-DD or RFC 3339.
  # Unset means 7 days back from each run.
  # start_date: "2025-01-01"
  post_delay: 2s
  upload_delay: 1s
  # Posts tagged with this hashtag stay on Bluesky.
  no_sync_tag: no-sync
  disable_attribution: false
  sync_videos: false
  # dry_run: true

ledger:
  backend: json # or sqlite
  path: .social-sync/ledger.json

log:
  level: info
`
