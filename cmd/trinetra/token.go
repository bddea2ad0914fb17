package main

import (
	"fmt"

	"trinetra/internal/utils"

	"github.com/urfave/cli/v2"
)

var tokenCommand = &cli.Command{
	Name:  "token",
	Usage: "Generate form link tokens or record ids",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of values to generate",
			Value:   1,
		},
		&cli.BoolFlag{
			Name:  "id",
			Usage: "Generate record ids instead of form link tokens",
		},
	},
	Action: func(c *cli.Context) error {
		generate := utils.FormToken
		if c.Bool("id") {
			generate = utils.NanoID
		}

		count := c.Int("count")
		for range count {
			fmt.Println(generate())
		}
		return nil
	},
}
