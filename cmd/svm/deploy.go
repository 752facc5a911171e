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

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract/wire"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/spacemeshos/svm/runtime"
	"github.com/spacemeshos/svm/vm/compiler"
	"github.com/urfave/cli/v2"
)

var (
	nameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "wraps the WebAssembly module given as argument into a contract of this name",
	}
	authorFlag = cli.StringFlag{
		Name:  "author",
		Usage: "author address of a contract built with --name",
		Value: common.Address{}.String(),
	}
)

var Deploy = cli.Command{
	Action:    deploy,
	Name:      "deploy",
	Usage:     "validates and stores a contract",
	ArgsUsage: "<deploy-contract message file | wasm file with --name>",
	Flags: []cli.Flag{
		&nameFlag,
		&authorFlag,
	},
}

func deploy(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing contract file")
	}
	data, err := readInput(context.Args().Get(0))
	if err != nil {
		return err
	}

	if name := context.String(nameFlag.Name); name != "" {
		author, err := common.AddressFromHex(context.String(authorFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid author: %w", err)
		}
		data, err = wire.NewContractBuilder().
			WithName(name).
			WithAuthor(author).
			WithCode(data).
			Build()
		if err != nil {
			return err
		}
	}

	return withRuntime(context, func(rt *runtime.Runtime, _ kv.KeyValueStore) error {
		address, err := rt.Deploy(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(context.App.Writer, "Deployed contract at %v\n", address)
		return nil
	})
}

var Validate = cli.Command{
	Action:    validate,
	Name:      "validate",
	Usage:     "checks a WebAssembly module against the deterministic instruction subset",
	ArgsUsage: "<wasm file>",
}

func validate(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing module file")
	}
	code, err := readInput(context.Args().Get(0))
	if err != nil {
		return err
	}
	if err := compiler.Validate(code); err != nil {
		return err
	}
	fmt.Fprintf(context.App.Writer, "Module is valid\n")
	return nil
}
