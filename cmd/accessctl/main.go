// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// accessctl validates and exercises gas-station access-control policy
// files, and can run the engine as a standalone HTTP admission endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/luxfi/log"
	"github.com/urfave/cli/v2"
)

const clientIdentifier = "accessctl"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "validate and evaluate gas-station access-control policies",
	Version: "1.0.0",
}

func init() {
	app.Commands = []*cli.Command{
		validateCommand,
		checkCommand,
		serveCommand,
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: trace, debug, info, warn, error, crit",
			Value: "info",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDefault(log.New(c.String("log-level")))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
