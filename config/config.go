package config

import (
	"fmt"
	"os"
	"time"

	"feedhub/aggregator"
	"feedhub/bluesky"
	"feedhub/microblog"
	"feedhub/youtube"

	"github.com/BurntSushi/toml"
)

// TomlServer holds the HTTP listener settings
type TomlServer struct {
	Hostname   string `toml:"hostname"`
	Port       int    `toml:"port"`
	Production bool   `toml:"production"`
}

// TomlYouTube configures the video provider
type TomlYouTube struct {
	APIBase string `toml:"api_base"`
	// FeedSource is "api" for playlistItems or "atom" for the public feed
	FeedSource      string        `toml:"feed_source"`
	AtomBase        string        `toml:"atom_base"`
	CacheTTL        time.Duration `toml:"cache_ttl"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	DefaultChannels []string      `toml:"default_channels"`
}

// TomlMicroblog configures the microblog provider
type TomlMicroblog struct {
	// Provider is "x" or "bluesky"
	Provider    string        `toml:"provider"`
	Username    string        `toml:"username"`
	APIBase     string        `toml:"api_base"`
	BlueskyHost string        `toml:"bluesky_host"`
	CacheTTL    time.Duration `toml:"cache_ttl"`
}

// TomlProxy points remote clients at a feedhub server
type TomlProxy struct {
	BaseURL string `toml:"base_url"`
	Retries int    `toml:"retries"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Server    TomlServer    `toml:"server"`
	YouTube   TomlYouTube   `toml:"youtube"`
	Microblog TomlMicroblog `toml:"microblog"`
	Proxy     TomlProxy     `toml:"proxy"`
}

// Default returns the configuration used when no file is given
func Default() *TomlConfig {
	return &TomlConfig{
		Server: TomlServer{
			Hostname: "localhost",
			Port:     3000,
		},
		YouTube: TomlYouTube{
			APIBase:        youtube.DefaultAPIBase,
			FeedSource:     "api",
			AtomBase:       youtube.DefaultAtomBase,
			CacheTTL:       aggregator.DefaultTTL,
			RequestTimeout: youtube.DefaultRequestTimeout,
		},
		Microblog: TomlMicroblog{
			Provider:    "x",
			Username:    microblog.DefaultUsername,
			APIBase:     microblog.DefaultXAPIBase,
			BlueskyHost: bluesky.DefaultAppViewHost,
		},
		Proxy: TomlProxy{
			Retries: 2,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *TomlConfig) Validate() error {
	switch c.YouTube.FeedSource {
	case "api", "atom":
	default:
		return fmt.Errorf("youtube.feed_source must be \"api\" or \"atom\", got %q", c.YouTube.FeedSource)
	}
	switch c.Microblog.Provider {
	case "x", "bluesky":
	default:
		return fmt.Errorf("microblog.provider must be \"x\" or \"bluesky\", got %q", c.Microblog.Provider)
	}
	if c.YouTube.CacheTTL < 0 || c.Microblog.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	if c.Proxy.Retries < 0 {
		return fmt.Errorf("proxy.retries must not be negative")
	}
	return nil
}
