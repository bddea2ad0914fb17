package main

import (
	"fmt"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Pretty print a form link and whatever the respondent has saved",
	ArgsUsage: "<token>",
	Action: func(c *cli.Context) error {
		token := c.Args().First()
		if token == "" {
			return fmt.Errorf("a form link token is required")
		}

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

		link, err := repos.links.LinkByToken(c.Context, token)
		if err != nil {
			return err
		}
		pp.Println(link)

		avf, err := repos.avf.AVFResponse(c.Context, token)
		if err != nil {
			return err
		}
		if avf != nil {
			pp.Println(avf)
		}

		bgv, err := repos.bgv.BGVForm(c.Context, token)
		if err != nil {
			return err
		}
		if bgv != nil {
			pp.Println(bgv)
		}

		return nil
	},
}
