package main

import (
	"fmt"

	"trinetra/internal/seed"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Create the SUDO operator and optional demo form links",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "username", Usage: "SUDO username", EnvVars: []string{"SUDO_USERNAME"}, Value: "root"},
		&cli.StringFlag{Name: "email", Usage: "SUDO email address", EnvVars: []string{"SUDO_EMAIL"}, Required: true},
		&cli.StringFlag{Name: "phone", Usage: "SUDO phone number, checked at login", EnvVars: []string{"SUDO_PHONE"}},
		&cli.StringFlag{Name: "password", Usage: "SUDO password", EnvVars: []string{"SUDO_PASSWORD"}, Required: true},
		&cli.IntFlag{Name: "demo-links", Usage: "Number of demo form links to create for the SUDO user", Value: 0},
	},
	Action: func(c *cli.Context) error {
		logger := newLogger(c)

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := c.Context

		repos, err := openRepositories(ctx, cfg, false, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer repos.close()

		logger.Info("Connected to database")

		sudo, err := seed.SeedSudo(ctx, repos.users, seed.SudoAccount{
			Username: c.String("username"),
			Email:    c.String("email"),
			Phone:    c.String("phone"),
			Password: c.String("password"),
		})
		if err != nil {
			return fmt.Errorf("failed to seed sudo user: %w", err)
		}

		if n := c.Int("demo-links"); n > 0 {
			verify := newVerificationService(cfg, repos, verificationOptions{}, logger)

			tokens, err := seed.SeedDemoLinks(ctx, verify, sudo, n)
			if err != nil {
				return fmt.Errorf("failed to seed demo links: %w", err)
			}
			for _, token := range tokens {
				fmt.Println(token)
			}
		}

		return nil
	},
}
