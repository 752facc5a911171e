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
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract"
	"github.com/spacemeshos/svm/contract/wire"
	"github.com/spacemeshos/svm/runtime"
	"github.com/spacemeshos/svm/vm/wasmtest"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"svm"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func storageAddress() common.Address {
	return contract.ComputeAddress(&contract.Contract{Name: "storage", Code: wasmtest.Storage()})
}

func TestSvm_DeployExecInspect(t *testing.T) {
	for _, backend := range []string{"leveldb", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			require := require.New(t)
			db := t.TempDir()
			address := storageAddress()

			code := writeFile(t, "storage.wasm", wasmtest.Storage())
			out, err := run(t, "--db", db, "--backend", backend, "deploy", "--name", "storage", code)
			require.NoError(err)
			require.Contains(out, "Deployed contract at "+address.String())

			tx, err := wire.NewTransactionBuilder().
				WithContract(address).
				WithFuncName("write_slice").
				WithArgs(contract.Fixed{Data: []byte{10, 20, 30}}, contract.I32(3)).
				Build()
			require.NoError(err)
			txFile := writeFile(t, "tx.hex", []byte(hexutil.Encode(tx)+"\n"))
			out, err = run(t, "--db", db, "--backend", backend, "exec", "--hash-workers", "4", txFile)
			require.NoError(err)
			require.Contains(out, "State: 0x")
			require.NotContains(out, "State: "+common.EmptyState.String())

			tx, err = wire.NewTransactionBuilder().
				WithContract(address).
				WithFuncName("read_slice").
				WithArgs(contract.I32(200)).
				Build()
			require.NoError(err)
			out, err = run(t, "--db", db, "--backend", backend, "exec", writeFile(t, "tx.bin", tx))
			require.NoError(err)
			require.Contains(out, "Return #0: 1971210 (i32)")

			out, err = run(t, "--db", db, "--backend", backend, "inspect", address.String())
			require.NoError(err)
			require.Contains(out, "Name:    storage")
			require.Contains(out, "Page 1: 0x")
		})
	}
}

func TestSvm_ExecWithWrongStateFails(t *testing.T) {
	require := require.New(t)
	db := t.TempDir()
	address := storageAddress()

	_, err := run(t, "--db", db, "deploy", "--name", "storage", writeFile(t, "storage.wasm", wasmtest.Storage()))
	require.NoError(err)

	tx, err := wire.NewTransactionBuilder().
		WithContract(address).
		WithFuncName("reg_i64").
		WithArgs(contract.I64(1)).
		Build()
	require.NoError(err)
	_, err = run(t, "--db", db, "exec", "--state", common.State{1}.String(), writeFile(t, "tx.bin", tx))
	require.ErrorIs(err, runtime.ErrStateMismatch)
}

func TestSvm_DeployRejectsInvalidCode(t *testing.T) {
	_, err := run(t, "--db", t.TempDir(), "deploy", "--name", "float", writeFile(t, "float.wasm", wasmtest.FloatAdd()))
	require.Error(t, err)
}

func TestSvm_DeployAcceptsWireMessages(t *testing.T) {
	require := require.New(t)
	data, err := wire.NewContractBuilder().
		WithName("empty").
		WithAuthor(common.AddressFromUint32(1)).
		WithCode(wasmtest.Empty()).
		Build()
	require.NoError(err)
	c, err := wire.ParseContract(data)
	require.NoError(err)

	out, err := run(t, "--db", t.TempDir(), "deploy", writeFile(t, "contract.bin", data))
	require.NoError(err)
	require.Contains(out, contract.ComputeAddress(c).String())
}

func TestSvm_Validate(t *testing.T) {
	out, err := run(t, "validate", writeFile(t, "ok.wasm", wasmtest.Transfer()))
	require.NoError(t, err)
	require.Contains(t, out, "Module is valid")

	_, err = run(t, "validate", writeFile(t, "float.wasm", wasmtest.FloatAdd()))
	require.Error(t, err)
}

func TestSvm_FundAndBalance(t *testing.T) {
	require := require.New(t)
	db := t.TempDir()
	account := common.AddressFromUint32(1).String()

	_, err := run(t, "--db", db, "fund", account, "100")
	require.NoError(err)
	out, err := run(t, "--db", db, "fund", account, "23")
	require.NoError(err)
	require.Contains(out, "123")

	out, err = run(t, "--db", db, "balance", account)
	require.NoError(err)
	require.Contains(out, "Balance of "+account+": 123")

	_, err = run(t, "--db", db, "fund", account, "abc")
	require.Error(err)
}

func TestSvm_MissingArgumentsAreReported(t *testing.T) {
	_, err := run(t, "deploy", writeFile(t, "x.wasm", wasmtest.Empty()))
	require.ErrorContains(t, err, "missing --db flag")

	_, err = run(t, "--db", t.TempDir(), "inspect")
	require.ErrorContains(t, err, "missing address")

	_, err = run(t, "--db", t.TempDir(), "--backend", "rocksdb", "balance", common.Address{}.String())
	require.ErrorContains(t, err, "unknown backend")

	_, err = run(t, "--db", t.TempDir(), "inspect", common.AddressFromUint32(9).String())
	require.ErrorContains(t, err, "no contract")
}

func TestSvm_ExecRejectsOutOfRangeLimits(t *testing.T) {
	tx, err := wire.NewTransactionBuilder().
		WithContract(storageAddress()).
		WithFuncName("reg_i64").
		WithArgs(contract.I64(1)).
		Build()
	require.NoError(t, err)
	txFile := writeFile(t, "tx.bin", tx)

	for _, flag := range []string{"--max-pages", "--max-slices"} {
		_, err := run(t, "--db", t.TempDir(), "exec", flag, "4294967296", txFile)
		require.ErrorContains(t, err, "invalid "+flag+" value 4294967296")
	}
}
