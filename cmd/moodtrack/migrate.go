package main

import (
	"github.com/urfave/cli/v2"

	"moodtrack/internal/config"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			db, err := openDatabase(ctx.Context, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Migrate(ctx.Context, logger.WithField("driver", cfg.Database.Driver))
		},
	}
}
