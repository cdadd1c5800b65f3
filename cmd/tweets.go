package cmd

import (
	"feedhub/microblog"

	"github.com/urfave/cli/v2"
)

func tweetsCmd() *cli.Command {
	return &cli.Command{
		Name:  "tweets",
		Usage: "Print the latest text-only posts of an account",
		Description: `Fetches the account's most recent posts, drops the ones carrying media
and prints the rest as JSON.`,
		Flags: append(append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: microblog.DefaultLimit,
				Usage: "Number of posts to fetch (1-10)",
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "Account to read, defaults to the configured username",
			},
		}, routingFlags()...), providerFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			router, err := newRouter(ctx, cfg)
			if err != nil {
				return err
			}

			tweets, err := router.Tweets(ctx.Context, microblog.NormalizeLimit(ctx.Int("limit")), ctx.String("username"))
			if err != nil {
				return err
			}
			return printJSON(tweets)
		},
	}
}
