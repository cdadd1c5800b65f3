package cmd

import (
	"fmt"

	"feedhub/aggregator"
	"feedhub/bluesky"
	"feedhub/cache"
	"feedhub/config"
	"feedhub/microblog"
	"feedhub/models"
	"feedhub/proxy"
	"feedhub/youtube"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Flags shared by every command that reaches the upstream providers
func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "youtube-api-key",
			Usage:   "YouTube Data API key",
			EnvVars: []string{"YOUTUBE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "feed-source",
			Usage:   "Where channel uploads are read from (api or atom)",
			EnvVars: []string{"FEEDHUB_FEED_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "x-bearer-token",
			Usage:   "X API bearer token",
			EnvVars: []string{"X_BEARER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "x-username",
			Usage:   "Account whose posts are shown",
			EnvVars: []string{"X_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "microblog-provider",
			Usage:   "Microblog provider (x or bluesky)",
			EnvVars: []string{"FEEDHUB_MICROBLOG_PROVIDER"},
		},
		&cli.BoolFlag{
			Name:  "prompt",
			Usage: "Ask for missing secrets interactively",
		},
	}
}

// Flags for commands that may go through a remote feedhub server
func routingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Host the caller runs on, loopback hosts call the providers directly",
			EnvVars: []string{"FEEDHUB_HOST"},
		},
		&cli.BoolFlag{
			Name:    "production",
			Usage:   "Always go through the proxy server",
			EnvVars: []string{"FEEDHUB_PRODUCTION"},
		},
		&cli.StringFlag{
			Name:    "proxy-url",
			Usage:   "Base URL of the feedhub server used as proxy",
			EnvVars: []string{"FEEDHUB_PROXY_URL"},
		},
	}
}

// loadConfig reads the optional config file and applies flag overrides
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if ctx.IsSet("feed-source") {
		cfg.YouTube.FeedSource = ctx.String("feed-source")
	}
	if ctx.IsSet("x-username") {
		cfg.Microblog.Username = ctx.String("x-username")
	}
	if ctx.IsSet("microblog-provider") {
		cfg.Microblog.Provider = ctx.String("microblog-provider")
	}
	if ctx.IsSet("production") {
		cfg.Server.Production = ctx.Bool("production")
	}
	if ctx.IsSet("proxy-url") {
		cfg.Proxy.BaseURL = ctx.String("proxy-url")
	}
	if ctx.IsSet("hostname") {
		cfg.Server.Hostname = ctx.String("hostname")
	}
	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// secret returns the flag value, asking for it when --prompt is given
func secret(ctx *cli.Context, flag, label string) (string, error) {
	value := ctx.String(flag)
	if value != "" || !ctx.Bool("prompt") {
		return value, nil
	}
	return prompt.New().Ask(label).Input("", input.WithEchoMode(input.EchoNone))
}

type directServices struct {
	client     *youtube.Client
	aggregator *aggregator.Aggregator
	tweets     *microblog.Fetcher
}

func newDirectServices(cfg *config.TomlConfig, apiKey, bearerToken string) *directServices {
	client := youtube.NewClient(youtube.ClientConfig{
		APIKey:  apiKey,
		APIBase: cfg.YouTube.APIBase,
		Timeout: cfg.YouTube.RequestTimeout,
	})

	var feeds aggregator.FeedFetcher = youtube.NewPlaylistFetcher(client)
	if cfg.YouTube.FeedSource == "atom" {
		feeds = youtube.NewAtomFetcher(cfg.YouTube.AtomBase, cfg.YouTube.RequestTimeout)
	}

	directory := youtube.NewDirectory(client)
	agg := aggregator.New(aggregator.Config{
		Resolver:     directory,
		Feeds:        feeds,
		Stats:        directory,
		Bundles:      cache.New[models.AggregateResult]("bundles"),
		Uploads:      cache.New[[]models.ContentItem]("uploads"),
		Counts:       cache.New[models.ChannelStats]("stats"),
		TTL:          cfg.YouTube.CacheTTL,
		FetchTimeout: cfg.YouTube.RequestTimeout,
	})

	var source microblog.Source
	switch cfg.Microblog.Provider {
	case "bluesky":
		source = bluesky.NewSource(bluesky.Config{Host: cfg.Microblog.BlueskyHost})
	default:
		source = microblog.NewXSource(microblog.XConfig{
			BearerToken: bearerToken,
			APIBase:     cfg.Microblog.APIBase,
		})
	}

	log.WithFields(log.Fields{
		"feedSource": cfg.YouTube.FeedSource,
		"microblog":  cfg.Microblog.Provider,
		"cacheTTL":   cfg.YouTube.CacheTTL,
	}).Debug("Configured direct services")

	return &directServices{
		client:     client,
		aggregator: agg,
		tweets: microblog.NewFetcher(microblog.FetcherConfig{
			Source:   source,
			Username: cfg.Microblog.Username,
			TTL:      cfg.Microblog.CacheTTL,
		}),
	}
}

func newProxyClient(cfg *config.TomlConfig) *proxy.Client {
	return proxy.New(proxy.Config{
		BaseURL: cfg.Proxy.BaseURL,
		Retries: cfg.Proxy.Retries,
	})
}
