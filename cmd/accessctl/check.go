// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/luxfi/gas-station/accesscontrol"
	"github.com/luxfi/gas-station/tracker"
)

var checkCommand = &cli.Command{
	Action:    checkAccess,
	Name:      "check",
	Usage:     "evaluate a transaction request (read as JSON from stdin) against a policy file",
	ArgsUsage: "<policy-file>",
	Description: `
The request document read from stdin has the shape:

  {
    "transactionDigest": "...",
    "senderAddress": "0x...",
    "transactionBudget": 50000,
    "moveCallPackageAddresses": ["0x..."],
    "ptbCommandCount": 3,
    "transactionData": { ... }
  }

An in-memory aggregate store backs any gas_usage predicates; it starts
empty on every invocation.`,
}

type checkRequest struct {
	TransactionDigest        string          `json:"transactionDigest"`
	SenderAddress            string          `json:"senderAddress"`
	TransactionBudget        uint64          `json:"transactionBudget"`
	MoveCallPackageAddresses []string        `json:"moveCallPackageAddresses"`
	PTBCommandCount          *int            `json:"ptbCommandCount"`
	TransactionData          json.RawMessage `json:"transactionData"`
}

func checkAccess(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("check requires exactly one argument: the policy file path", 1)
	}

	cfg, err := accesscontrol.LoadConfig(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy: %v", err), 1)
	}
	ctx := context.Background()
	if err := cfg.Initialize(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("policy failed to initialize: %v", err), 1)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read request from stdin: %v", err), 1)
	}
	var req checkRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return cli.Exit(fmt.Sprintf("invalid request json: %v", err), 1)
	}

	tctx, err := req.toTransactionContext()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	tctx = tctx.WithTracker(tracker.NewMemoryStore())

	controller := accesscontrol.NewController(cfg)
	if err := controller.Initialize(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("controller failed to initialize: %v", err), 1)
	}

	decision, err := controller.CheckAccess(ctx, tctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("evaluation failed: %v", err), 1)
	}

	fmt.Println(decision)
	return nil
}

func (r checkRequest) toTransactionContext() (*accesscontrol.TransactionContext, error) {
	sender, err := accesscontrol.ParseAddress(r.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("senderAddress: %w", err)
	}
	packages := make([]accesscontrol.Address, len(r.MoveCallPackageAddresses))
	for i, s := range r.MoveCallPackageAddresses {
		addr, err := accesscontrol.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("moveCallPackageAddresses[%d]: %w", i, err)
		}
		packages[i] = addr
	}

	return &accesscontrol.TransactionContext{
		TransactionDigest:        r.TransactionDigest,
		SenderAddress:            sender,
		TransactionBudget:        r.TransactionBudget,
		MoveCallPackageAddresses: packages,
		PTBCommandCount:          r.PTBCommandCount,
		TransactionData:          r.TransactionData,
	}, nil
}
