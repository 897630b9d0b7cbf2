package cmd

import (
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"skypager/config"
)

// pinCmd appends a feed URI to the configured pinned list.
func pinCmd() *cli.Command {
	return &cli.Command{
		Name:      "pin",
		Usage:     "Pin a feed in the configuration file",
		ArgsUsage: "[feed-uri]",
		Description: `Appends a feed URI to the pinned list in the configuration file.
Prompts for the URI when none is given as an argument.

A running session does not watch the file; POST /control/pinned/reload
makes it pick up the change.`,
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			uri := ctx.Args().First()
			if uri == "" {
				uri, err = prompt.New().Ask("Feed URI:").Input("at://did:plc:example/app.bsky.feed.generator/my-feed")
				if err != nil {
					return err
				}
			}
			if uri == "" {
				return fmt.Errorf("feed URI must not be empty")
			}
			if lo.Contains(cfg.Pager.PinnedFeeds, uri) {
				fmt.Printf("%s is already pinned\n", uri)
				return nil
			}

			cfg.Pager.PinnedFeeds = append(cfg.Pager.PinnedFeeds, uri)
			if err := config.SaveConfig(ctx.String("config"), cfg); err != nil {
				return fmt.Errorf("could not save config: %w", err)
			}
			fmt.Printf("Pinned %s at position %d\n", uri, len(cfg.Pager.PinnedFeeds))
			return nil
		},
	}
}

// unpinCmd removes a feed URI from the configured pinned list.
func unpinCmd() *cli.Command {
	return &cli.Command{
		Name:      "unpin",
		Usage:     "Unpin a feed in the configuration file",
		ArgsUsage: "[feed-uri]",
		Description: `Removes a feed URI from the pinned list in the configuration file.
Offers a picker over the currently pinned feeds when no argument is
given.`,
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}
			if len(cfg.Pager.PinnedFeeds) == 0 {
				fmt.Println("No feeds pinned")
				return nil
			}

			uri := ctx.Args().First()
			if uri == "" {
				uri, err = prompt.New().Ask("Unpin which feed?").Choose(cfg.Pager.PinnedFeeds)
				if err != nil {
					return err
				}
			}
			if !lo.Contains(cfg.Pager.PinnedFeeds, uri) {
				return fmt.Errorf("%s is not pinned", uri)
			}

			cfg.Pager.PinnedFeeds = lo.Without(cfg.Pager.PinnedFeeds, uri)
			if err := config.SaveConfig(ctx.String("config"), cfg); err != nil {
				return fmt.Errorf("could not save config: %w", err)
			}
			fmt.Printf("Unpinned %s\n", uri)
			return nil
		},
	}
}
