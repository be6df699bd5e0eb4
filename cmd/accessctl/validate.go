// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/luxfi/gas-station/accesscontrol"
)

var validateCommand = &cli.Command{
	Action:    validatePolicy,
	Name:      "validate",
	Usage:     "parse a policy file and compile every rule's rego expression",
	ArgsUsage: "<policy-file>",
}

func validatePolicy(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("validate requires exactly one argument: the policy file path", 1)
	}

	cfg, err := accesscontrol.LoadConfig(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy: %v", err), 1)
	}
	if err := cfg.Initialize(context.Background()); err != nil {
		return cli.Exit(fmt.Sprintf("policy failed to initialize: %v", err), 1)
	}

	fmt.Printf("ok: access-policy=%s rules=%d\n", cfg.AccessPolicy, len(cfg.Rules))
	return nil
}
