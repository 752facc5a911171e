// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/spacemeshos/svm/database/ledger"
	"github.com/spacemeshos/svm/runtime"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
)

var Inspect = cli.Command{
	Action:    inspect,
	Name:      "inspect",
	Usage:     "prints a deployed contract and its storage summary",
	ArgsUsage: "<address>",
}

func addressArg(context *cli.Context, pos int) (common.Address, error) {
	if context.Args().Len() <= pos {
		return common.Address{}, fmt.Errorf("missing address")
	}
	return common.AddressFromHex(context.Args().Get(pos))
}

func inspect(context *cli.Context) error {
	address, err := addressArg(context, 0)
	if err != nil {
		return err
	}
	return withRuntime(context, func(rt *runtime.Runtime, _ kv.KeyValueStore) error {
		c, found, err := rt.LoadContract(address)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no contract at %v", address)
		}
		state, err := rt.State(address)
		if err != nil {
			return err
		}
		hashes, err := rt.PageHashes(address)
		if err != nil {
			return err
		}

		out := context.App.Writer
		fmt.Fprintf(out, "Address: %v\n", address)
		fmt.Fprintf(out, "Name:    %s\n", c.Name)
		fmt.Fprintf(out, "Version: %d\n", c.Version)
		fmt.Fprintf(out, "Author:  %v\n", c.Author)
		for _, admin := range c.Admins {
			fmt.Fprintf(out, "Admin:   %v\n", admin)
		}
		fmt.Fprintf(out, "Code:    %d bytes\n", len(c.Code))
		fmt.Fprintf(out, "State:   %v\n", state)
		indices := maps.Keys(hashes)
		slices.Sort(indices)
		for _, idx := range indices {
			fmt.Fprintf(out, "Page %d: %v\n", idx, hashes[idx])
		}
		return nil
	})
}

var Fund = cli.Command{
	Action:    fund,
	Name:      "fund",
	Usage:     "credits an account in the balance ledger",
	ArgsUsage: "<address> <amount>",
}

func fund(context *cli.Context) error {
	address, err := addressArg(context, 0)
	if err != nil {
		return err
	}
	if context.Args().Len() != 2 {
		return fmt.Errorf("missing amount")
	}
	amount, err := uint256.FromDecimal(context.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	return withRuntime(context, func(_ *runtime.Runtime, store kv.KeyValueStore) error {
		balance, err := ledger.New(store).Credit(address, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(context.App.Writer, "Balance of %v: %v\n", address, balance)
		return nil
	})
}

var Balance = cli.Command{
	Action:    balance,
	Name:      "balance",
	Usage:     "prints the balance of an account",
	ArgsUsage: "<address>",
}

func balance(context *cli.Context) error {
	address, err := addressArg(context, 0)
	if err != nil {
		return err
	}
	return withRuntime(context, func(_ *runtime.Runtime, store kv.KeyValueStore) error {
		balance, err := ledger.New(store).Balance(address)
		if err != nil {
			return err
		}
		fmt.Fprintf(context.App.Writer, "Balance of %v: %v\n", address, balance)
		return nil
	})
}
