package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultLedgerPath  = ".social-sync/ledger.json"
	DefaultPDS         = "https://bsky.social"
	DefaultMaxPosts    = 10
	DefaultPostDelay   = 2 * time.Second
	DefaultUploadDelay = 1 * time.Second
	DefaultNoSyncTag   = "no-sync"
	DefaultSyncWindow  = 7 * 24 * time.Hour
	DefaultBackend     = "json"
	DefaultLogLevel    = "info"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Bluesky  BlueskyConfig  `yaml:"bluesky"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	Sync     SyncConfig     `yaml:"sync"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Log      LogConfig      `yaml:"log"`
}

type BlueskyConfig struct {
	Handle         string `yaml:"handle"`
	AppPasswordEnv string `yaml:"app_password_env"`
	PDS            string `yaml:"pds"`

	// Resolved from env var at load time.
	AppPassword string `yaml:"-"`
}

type MastodonConfig struct {
	Server         string `yaml:"server"`
	AccessTokenEnv string `yaml:"access_token_env"`

	// Resolved from env var at load time.
	AccessToken string `yaml:"-"`
}

type SyncConfig struct {
	MaxPosts           int      `yaml:"max_posts"`
	StartDate          string   `yaml:"start_date"`
	PostDelay          Duration `yaml:"post_delay"`
	UploadDelay        Duration `yaml:"upload_delay"`
	NoSyncTag          string   `yaml:"no_sync_tag"`
	DisableAttribution bool     `yaml:"disable_attribution"`
	SyncVideos         bool     `yaml:"sync_videos"`
	DryRun             bool     `yaml:"dry_run"`
}

type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bluesky.PDS == "" {
		cfg.Bluesky.PDS = DefaultPDS
	}
	if cfg.Sync.MaxPosts == 0 {
		cfg.Sync.MaxPosts = DefaultMaxPosts
	}
	if cfg.Sync.PostDelay.Duration == 0 {
		cfg.Sync.PostDelay.Duration = DefaultPostDelay
	}
	if cfg.Sync.UploadDelay.Duration == 0 {
		cfg.Sync.UploadDelay.Duration = DefaultUploadDelay
	}
	if cfg.Sync.NoSyncTag == "" {
		cfg.Sync.NoSyncTag = DefaultNoSyncTag
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultBackend
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Bluesky.AppPasswordEnv != "" {
		cfg.Bluesky.AppPassword = os.Getenv(cfg.Bluesky.AppPasswordEnv)
	}
	if cfg.Mastodon.AccessTokenEnv != "" {
		cfg.Mastodon.AccessToken = os.Getenv(cfg.Mastodon.AccessTokenEnv)
	}
}

func validate(cfg *Config) error {
	if cfg.Bluesky.Handle == "" {
		return errors.New("bluesky.handle is required")
	}
	if cfg.Mastodon.Server == "" {
		return errors.New("mastodon.server is required")
	}
	if !strings.HasPrefix(cfg.Mastodon.Server, "http://") && !strings.HasPrefix(cfg.Mastodon.Server, "https://") {
		return fmt.Errorf("mastodon.server: %q must include a scheme", cfg.Mastodon.Server)
	}

	if cfg.Sync.MaxPosts < 1 {
		return fmt.Errorf("sync.max_posts: %d must be positive", cfg.Sync.MaxPosts)
	}
	if cfg.Sync.StartDate != "" {
		if _, err := parseStartDate(cfg.Sync.StartDate); err != nil {
			return fmt.Errorf("sync.start_date: %w", err)
		}
	}

	switch cfg.Ledger.Backend {
	case "json", "sqlite":
		// valid
	default:
		return fmt.Errorf("ledger.backend: unknown backend %q (want json or sqlite)", cfg.Ledger.Backend)
	}

	return nil
}

// StartTime returns the oldest post creation time still eligible for
// syncing. Unset start_date means one default window back from now.
func (cfg *Config) StartTime() time.Time {
	if cfg.Sync.StartDate == "" {
		return time.Now().UTC().Add(-DefaultSyncWindow)
	}
	t, err := parseStartDate(cfg.Sync.StartDate)
	if err != nil {
		// validate already rejected this
		return time.Now().UTC().Add(-DefaultSyncWindow)
	}
	return t
}

func parseStartDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
