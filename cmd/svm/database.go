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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/spacemeshos/svm/runtime"
	"github.com/urfave/cli/v2"
)

func openStore(context *cli.Context) (kv.KeyValueStore, error) {
	dir := context.String(dbFlag.Name)
	if dir == "" {
		return nil, fmt.Errorf("missing --%s flag", dbFlag.Name)
	}
	switch backend := context.String(backendFlag.Name); backend {
	case "leveldb":
		return kv.OpenLevelDb(dir, kv.LevelDbConfig{CacheSize: kv.DefaultCacheSize()})
	case "sqlite":
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		return kv.OpenSqlite(filepath.Join(dir, "svm.sqlite"))
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// withRuntime runs the given function on a runtime over the database
// selected by the global flags.
func withRuntime(context *cli.Context, fn func(*runtime.Runtime, kv.KeyValueStore) error) error {
	store, err := openStore(context)
	if err != nil {
		return err
	}
	rt, err := runtime.New(context.Context, store, runtime.DefaultConfig())
	if err != nil {
		return errors.Join(err, store.Close())
	}
	return errors.Join(
		fn(rt, store),
		rt.Close(context.Context),
		store.Close(),
	)
}

// readInput reads a binary file. Files holding a 0x-prefixed hex string are
// decoded.
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("0x")) {
		return hexutil.Decode(string(trimmed))
	}
	return data, nil
}
