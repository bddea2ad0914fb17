package main

import (
	"fmt"

	"trinetra/internal/db"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply pending database migrations",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "list",
			Usage: "Print the embedded migrations without applying them",
		},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("list") {
			names, err := db.Migrations()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		logger := newLogger(c)

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		pool, err := db.Connect(c.Context, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		return db.Migrate(c.Context, pool, cfg.DatabaseSchema, logger)
	},
}
