package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedhub",
		Usage: "Aggregates recent videos and posts into cache-friendly bundles",
		Description: `Feedhub collects the latest uploads of a set of YouTube channels and the
		latest text posts of a microblog account, and serves them as compact
		JSON bundles. Results are memoized for a freshness window so repeated
		requests do not hit the upstream APIs again.

		Flags can generally be set via environment variables, e.g.:

		--port => FEEDHUB_PORT=8080
		--youtube-api-key => YOUTUBE_API_KEY=...
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				EnvVars: []string{"FEEDHUB_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"FEEDHUB_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"FEEDHUB_LOG_FORMAT"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			serveCmd(),
			bundleCmd(),
			tweetsCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func setupLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch ctx.String("log-format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", ctx.String("log-format"))
	}

	// Keep stdout for command output
	log.SetOutput(os.Stderr)
	return nil
}
