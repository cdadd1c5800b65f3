package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"feedhub/aggregator"
	"feedhub/config"
	"feedhub/microblog"
	"feedhub/transport"

	"github.com/urfave/cli/v2"
)

func bundleCmd() *cli.Command {
	return &cli.Command{
		Name:  "bundle",
		Usage: "Print the recent uploads of a set of channels",
		Description: `Fetches one bundle per channel and prints the result as JSON.

Runs the aggregation in-process when the caller is on a loopback host and not
in production, otherwise asks the feedhub server given by --proxy-url.`,
		Flags: append(append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "channels",
				Usage:   "Channel ids, defaults to youtube.default_channels from the config",
				EnvVars: []string{"FEEDHUB_CHANNELS"},
			},
			&cli.IntFlag{
				Name:  "max-results",
				Value: aggregator.DefaultMaxResults,
				Usage: "Recent items per channel (1-20)",
			},
		}, routingFlags()...), providerFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			ids := ctx.StringSlice("channels")
			if len(ids) == 0 {
				ids = cfg.YouTube.DefaultChannels
			}
			if len(ids) == 0 {
				return errors.New("no channels given, use --channels or youtube.default_channels")
			}

			router, err := newRouter(ctx, cfg)
			if err != nil {
				return err
			}

			result, err := router.Bundle(ctx.Context, ids, ctx.Int("max-results"))
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

// newRouter wires both the in-process and the proxy implementations
func newRouter(ctx *cli.Context, cfg *config.TomlConfig) (*transport.Router, error) {
	env := transport.Environment{
		Production: cfg.Server.Production,
		Host:       ctx.String("host"),
	}

	routerCfg := transport.RouterConfig{Environment: env}

	if transport.DefaultPolicy(env) == transport.Direct {
		apiKey, err := secret(ctx, "youtube-api-key", "YouTube API key:")
		if err != nil {
			return nil, err
		}
		bearerToken, err := secret(ctx, "x-bearer-token", "X bearer token:")
		if err != nil {
			return nil, err
		}
		services := newDirectServices(cfg, apiKey, bearerToken)
		routerCfg.DirectBundles = services.aggregator
		routerCfg.DirectTweets = services.tweets
	} else {
		client := newProxyClient(cfg)
		routerCfg.RemoteBundles = aggregator.NewRemote(client)
		routerCfg.RemoteTweets = microblog.NewRemote(client)
	}

	return transport.NewRouter(routerCfg), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
