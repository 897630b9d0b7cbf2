package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"skypager/analytics"
	"skypager/bluesky"
	"skypager/config"
	"skypager/lifecycle"
	"skypager/models"
	"skypager/notify"
	"skypager/server"
	"skypager/session"
	"skypager/store"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the skypager session",
		Description: `Signs in, builds one feed page per pinned feed next to the main
timeline, and runs the activation/refresh coordinator until
interrupted.

The control API accepts focus, foreground, page-selection and
soft-reset events and serves status, metrics and a live SSE event
stream. When jetstream hosts are configured, post activity from the
watched accounts triggers an immediate gated probe of the active page.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address for the control API",
				EnvVars: []string{"SKYPAGER_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the seen-cursor database",
				EnvVars: []string{"SKYPAGER_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}
			if listen := ctx.String("listen"); listen != "" {
				cfg.Control.Listen = listen
			}
			if db := ctx.String("db"); db != "" {
				cfg.Store.Path = db
			}
			if cfg.Identity.Handle == "" || cfg.Identity.Password == "" {
				return fmt.Errorf("identity handle and password are required to watch feeds")
			}

			fmt.Println("Starting skypager...")

			if err := store.Migrate(cfg.Store.Path); err != nil {
				return fmt.Errorf("could not migrate seen store: %w", err)
			}
			seenStore, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer seenStore.Close()

			client, err := bluesky.ClientFromCredentials(ctx.Context, cfg.Identity.PDSHost, &bluesky.Credentials{
				Identifier: cfg.Identity.Handle,
				Password:   cfg.Identity.Password,
			})
			if err != nil {
				return fmt.Errorf("could not create client with provided credentials: %w", err)
			}

			pinned := pinnedSource(cfg, client)

			bc := server.NewBroadcaster()
			sess, err := session.New(session.Config{
				Factory:      bluesky.Factory(bluesky.ControllerConfig{Client: client, Store: seenStore}),
				Pinned:       pinned,
				Analytics:    analytics.New(),
				PollInterval: cfg.Pager.PollInterval(),
				NewScroller:  loggingScroller,
				Observer:     bc.Publish,
			})
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			app := server.Server(&server.ServerConfig{Session: sess, Broadcaster: bc})

			// Graceful shutdown
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			go func() {
				<-interrupt
				fmt.Println("Gracefully shutting down...")
				cancel()
				app.ShutdownWithTimeout(10 * time.Second)
				bc.Shutdown()
			}()

			go func() {
				log.WithFields(log.Fields{
					"listen": cfg.Control.Listen,
				}).Info("Starting control API")
				if err := app.Listen(cfg.Control.Listen); err != nil {
					log.Errorf("Control API stopped: %v", err)
					cancel()
				}
			}()

			if len(cfg.Jetstream.Hosts) > 0 {
				watcher, err := notify.NewWatcher(notify.Config{
					Hosts:       cfg.Jetstream.Hosts,
					WatchedDIDs: cfg.Jetstream.WatchedDIDs,
					Compress:    cfg.Jetstream.Compress,
					UserAgent:   "skypager",
				}, func(did string) {
					sess.Post(session.RemoteActivityEvent{DID: did})
				})
				if err != nil {
					return err
				}
				go func() {
					if err := watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
						log.Errorf("Jetstream watcher stopped: %v", err)
					}
				}()
			}

			err = sess.Run(runCtx)
			fmt.Println("Done!")
			return err
		},
	}
}

func pinnedSource(cfg *config.Config, client *bluesky.Client) session.PinnedSource {
	if cfg.Pager.UsePreferences {
		return session.PinnedSourceFunc(func(ctx context.Context) ([]string, error) {
			return client.PinnedFeeds(ctx)
		})
	}
	return session.PinnedSourceFunc(func(ctx context.Context) ([]string, error) {
		return cfg.Pager.PinnedFeeds, nil
	})
}

func loggingScroller(desc models.FeedDescriptor) lifecycle.Scroller {
	return lifecycle.ScrollerFunc(func() {
		log.WithFields(log.Fields{
			"feed": desc.String(),
		}).Info("Scrolled to top")
	})
}
