package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"skypager/config"
	"skypager/store"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run seen-cursor database migrations",
		Description: `Runs migrations on the configured seen-cursor database. Will create the database if it does not exist.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the seen-cursor database",
				EnvVars: []string{"SKYPAGER_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			path, err := storePath(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database configured: %s\n", path)
			return store.Migrate(path)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback seen-cursor database migration",
		Description: `Rolls back the last migration on the seen-cursor database`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the seen-cursor database",
				EnvVars: []string{"SKYPAGER_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			path, err := storePath(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database configured: %s\n", path)
			return store.Rollback(path)
		},
	}
}

func storePath(ctx *cli.Context) (string, error) {
	if path := ctx.String("db"); path != "" {
		return path, nil
	}
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return "", err
	}
	return cfg.Store.Path, nil
}
