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
	"math"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/spacemeshos/svm/runtime"
	"github.com/urfave/cli/v2"
)

var (
	stateFlag = cli.StringFlag{
		Name:  "state",
		Usage: "expected state of the contract, defaults to its current state",
	}
	maxPagesFlag = cli.UintFlag{
		Name:  "max-pages",
		Usage: "number of storage pages the contract may use",
		Value: uint(runtime.DefaultOpts().MaxPages),
	}
	maxSlicesFlag = cli.UintFlag{
		Name:  "max-slices",
		Usage: "number of slice indices the contract may use",
		Value: uint(runtime.DefaultOpts().MaxPagesSlices),
	}
	hashWorkersFlag = cli.IntFlag{
		Name:  "hash-workers",
		Usage: "goroutines hashing pages on commit, 0 hashes on the calling one",
	}
)

var Exec = cli.Command{
	Action:    execute,
	Name:      "exec",
	Usage:     "executes a transaction and commits its effects",
	ArgsUsage: "<execute-transaction message file>",
	Flags: []cli.Flag{
		&stateFlag,
		&maxPagesFlag,
		&maxSlicesFlag,
		&hashWorkersFlag,
	},
}

func execute(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing transaction file")
	}
	data, err := readInput(context.Args().Get(0))
	if err != nil {
		return err
	}

	opts := runtime.DefaultOpts()
	if opts.MaxPages, err = uint32Flag(context, &maxPagesFlag); err != nil {
		return err
	}
	if opts.MaxPagesSlices, err = uint32Flag(context, &maxSlicesFlag); err != nil {
		return err
	}
	opts.HashWorkers = context.Int(hashWorkersFlag.Name)

	return withRuntime(context, func(rt *runtime.Runtime, _ kv.KeyValueStore) error {
		tx, err := rt.BuildTransaction(data)
		if err != nil {
			return err
		}

		var state common.State
		if s := context.String(stateFlag.Name); s != "" {
			state, err = common.StateFromHex(s)
		} else {
			state, err = rt.State(tx.Contract)
		}
		if err != nil {
			return err
		}

		receipt, err := rt.Exec(context.Context, tx, state, nil, opts)
		if err != nil {
			return err
		}
		out := context.App.Writer
		fmt.Fprintf(out, "State: %v\n", receipt.State)
		for i, value := range receipt.Returns {
			switch v := value.(type) {
			case contract.I32:
				fmt.Fprintf(out, "Return #%d: %d (i32)\n", i, int32(v))
			case contract.I64:
				fmt.Fprintf(out, "Return #%d: %d (i64)\n", i, int64(v))
			}
		}
		return nil
	})
}

func uint32Flag(context *cli.Context, flag *cli.UintFlag) (uint32, error) {
	value := context.Uint(flag.Name)
	if value > math.MaxUint32 {
		return 0, fmt.Errorf("invalid --%s value %d, must not exceed %d", flag.Name, value, uint32(math.MaxUint32))
	}
	return uint32(value), nil
}
