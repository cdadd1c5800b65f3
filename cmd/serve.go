package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedhub/server"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd starts the HTTP API
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feedhub HTTP API",
		Description: `Starts the feedhub HTTP server.

Serves the channel bundle endpoint on /api/youtube and the latest posts
endpoint on /api/latest-tweets, plus their legacy function paths. Bundles
are cached in memory for the configured freshness window.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname to listen on",
				EnvVars: []string{"FEEDHUB_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				EnvVars: []string{"FEEDHUB_PORT"},
			},
			&cli.StringFlag{
				Name:    "allow-origins",
				Value:   "*",
				Usage:   "Comma-separated origins allowed by CORS",
				EnvVars: []string{"FEEDHUB_ALLOW_ORIGINS"},
			},
		}, providerFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			apiKey, err := secret(ctx, "youtube-api-key", "YouTube API key:")
			if err != nil {
				return err
			}
			bearerToken, err := secret(ctx, "x-bearer-token", "X bearer token:")
			if err != nil {
				return err
			}

			if apiKey == "" {
				log.Warn("No YouTube API key configured, video endpoints will fail")
			}

			services := newDirectServices(cfg, apiKey, bearerToken)

			app := server.Server(&server.ServerConfig{
				Bundles:           services.aggregator,
				Channels:          services.aggregator,
				Search:            services.client,
				Tweets:            services.tweets,
				YouTubeConfigured: services.client.HasKey(),
				DefaultChannel:    lo.FirstOr(cfg.YouTube.DefaultChannels, ""),
				AllowOrigins:      ctx.String("allow-origins"),
			})

			// Graceful shutdown
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			listenErr := make(chan error, 1)
			go func() {
				addr := fmt.Sprintf("%s:%d", cfg.Server.Hostname, cfg.Server.Port)
				log.WithFields(log.Fields{"addr": addr}).Info("Starting server")
				listenErr <- app.Listen(addr)
			}()

			select {
			case err := <-listenErr:
				return fmt.Errorf("server stopped: %w", err)
			case <-stop:
			case <-ctx.Context.Done():
			}

			log.Info("Gracefully shutting down...")
			if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			log.Info("Done!")
			return nil
		},
	}
}
