package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Identity holds the Bluesky account the pager signs in as.
type Identity struct {
	Handle   string `toml:"handle"`
	Password string `toml:"password,omitempty"`
	PDSHost  string `toml:"pds_host,omitempty"`
}

// Pager holds the home-surface configuration: the ordered pinned feed
// URIs and the poll cadence. Order is significant: it is the page order.
type Pager struct {
	PinnedFeeds         []string `toml:"pinned_feeds"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds,omitempty"`

	// UsePreferences reads the pinned set from the account's saved
	// feeds preference instead of this file.
	UsePreferences bool `toml:"use_preferences,omitempty"`
}

// Control configures the local control/status HTTP API.
type Control struct {
	Listen string `toml:"listen,omitempty"`
}

// Store configures the seen-cursor database.
type Store struct {
	Path string `toml:"path,omitempty"`
}

// Jetstream configures the optional remote-activity watcher.
type Jetstream struct {
	Hosts       []string `toml:"hosts,omitempty"`
	Compress    bool     `toml:"compress,omitempty"`
	WatchedDIDs []string `toml:"watched_dids,omitempty"`
}

// Config is the top-level skypager configuration.
type Config struct {
	Identity  Identity  `toml:"identity"`
	Pager     Pager     `toml:"pager"`
	Control   Control   `toml:"control"`
	Store     Store     `toml:"store"`
	Jetstream Jetstream `toml:"jetstream"`
}

const (
	DefaultPDSHost      = "https://bsky.social"
	DefaultListen       = ":4800"
	DefaultStorePath    = "skypager.db"
	DefaultPollInterval = 30 * time.Second
)

// PollInterval returns the configured poll cadence, defaulting to 30s.
func (p Pager) PollInterval() time.Duration {
	if p.PollIntervalSeconds <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if config.Identity.PDSHost == "" {
		config.Identity.PDSHost = DefaultPDSHost
	}
	if config.Control.Listen == "" {
		config.Control.Listen = DefaultListen
	}
	if config.Store.Path == "" {
		config.Store.Path = DefaultStorePath
	}

	return &config, nil
}

// SaveConfig writes the configuration back, used by the pin/unpin
// commands. The pager core itself never writes configuration.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("error encoding config file: %w", err)
	}
	return nil
}
