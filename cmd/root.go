package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func RootApp() *cli.App {
	return &cli.App{
		Name:  "skypager",
		Usage: "A feed pager daemon for Bluesky",
		Description: `Skypager coordinates a set of independently scrollable Bluesky
		feed pages: the account's main timeline plus any user-pinned
		custom feeds.

		It decides which page is live, polls the live page for new
		content while the app is foregrounded and focused, reconciles
		pinned-feed configuration changes against running feed
		controllers, and routes soft resets to exactly the active page.
		A local HTTP API exposes status and the focus/selection controls.

		Flags can generally be set via environment variables, e.g.:

		--config => SKYPAGER_CONFIG=skypager.toml
		--log-level => SKYPAGER_LOG_LEVEL=debug
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "skypager.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"SKYPAGER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level: debug, info, warn or error",
				EnvVars: []string{"SKYPAGER_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log as JSON instead of text",
				EnvVars: []string{"SKYPAGER_LOG_JSON"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			if ctx.Bool("log-json") {
				log.SetFormatter(&log.JSONFormatter{})
			}
			return nil
		},
		Commands: []*cli.Command{
			watchCmd(),
			feedsCmd(),
			pinCmd(),
			unpinCmd(),
			resetCmd(),
			migrateCmd(),
			rollbackCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
