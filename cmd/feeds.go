package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"skypager/bluesky"
	"skypager/config"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "List the pinned feeds a session would build pages for",
		Description: `Prints the pinned feed URIs in page order, main timeline first.

Reads the configured list by default. With --preferences the list is
fetched from the account's saved-feeds preferences instead, which is
what a session started with use_preferences sees.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "preferences",
				Usage: "Fetch the pinned list from account preferences",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			uris := cfg.Pager.PinnedFeeds
			if ctx.Bool("preferences") || cfg.Pager.UsePreferences {
				if cfg.Identity.Handle == "" || cfg.Identity.Password == "" {
					return fmt.Errorf("identity handle and password are required to read preferences")
				}
				client, err := bluesky.ClientFromCredentials(ctx.Context, cfg.Identity.PDSHost, &bluesky.Credentials{
					Identifier: cfg.Identity.Handle,
					Password:   cfg.Identity.Password,
				})
				if err != nil {
					return fmt.Errorf("could not create client with provided credentials: %w", err)
				}
				uris, err = client.PinnedFeeds(ctx.Context)
				if err != nil {
					return fmt.Errorf("could not fetch saved-feeds preferences: %w", err)
				}
			}

			fmt.Println("0: main (following timeline)")
			for i, uri := range uris {
				fmt.Printf("%d: %s\n", i+1, uri)
			}
			return nil
		},
	}
}
