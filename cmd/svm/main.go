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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./cmd/svm <command> <flags>

var (
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "directory of the contract database",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "key-value backend of the database, leveldb or sqlite",
		Value: "leveldb",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "enables debug logging",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "svm",
		Usage: "deploys, executes and inspects WebAssembly contracts",
		Flags: []cli.Flag{
			&dbFlag,
			&backendFlag,
			&verboseFlag,
		},
		Before: func(context *cli.Context) error {
			if context.Bool(verboseFlag.Name) {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			&Deploy,
			&Exec,
			&Inspect,
			&Validate,
			&Fund,
			&Balance,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
