package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var expireCommand = &cli.Command{
	Name:  "expire",
	Usage: "Expire form links whose draft window has ended",
	Action: func(c *cli.Context) error {
		logger := newLogger(c)

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		repos, err := openRepositories(c.Context, cfg, false, logger)
		if err != nil {
			return err
		}
		defer repos.close()

		verify := newVerificationService(cfg, repos, verificationOptions{}, logger)

		n, err := verify.ExpireStale(c.Context)
		if err != nil {
			return err
		}

		fmt.Printf("Expired form links: %d\n", n)
		return nil
	},
}
