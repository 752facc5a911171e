// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/contract"
	"github.com/spacemeshos/svm/contract/wire"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/spacemeshos/svm/database/ledger"
	"github.com/spacemeshos/svm/storage/page"
	"github.com/spacemeshos/svm/vm/compiler"
	"github.com/spacemeshos/svm/vm/vmcall"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ContractEnv builds contracts and transactions from their wire encoding and
// derives contract addresses.
type ContractEnv interface {
	BuildContract(data []byte) (*contract.Contract, error)
	ComputeAddress(c *contract.Contract) common.Address
	BuildTransaction(data []byte) (*contract.Transaction, error)
}

// Runtime executes transactions against contracts deployed in a key-value
// store. A Runtime is safe for concurrent use; executions on the same
// contract are serialized.
type Runtime struct {
	config    Config
	kv        kv.KeyValueStore
	node      vmcall.NodeAPI
	contracts *contract.Store
	wasm      wazero.Runtime
	compiler  *compiler.Compiler

	locksMutex sync.Mutex
	locks      map[common.Address]*sync.Mutex // < per contract execution locks
}

// New creates a runtime over the given store. The store is not owned by the
// runtime and must be closed by the caller after closing the runtime.
func New(ctx context.Context, store kv.KeyValueStore, config Config) (*Runtime, error) {
	var rc wazero.RuntimeConfig
	if config.Interpreter {
		rc = wazero.NewRuntimeConfigInterpreter()
	} else {
		rc = wazero.NewRuntimeConfig()
	}
	rc = rc.WithCoreFeatures(api.CoreFeaturesV1)
	if config.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryLimitPages)
	}
	if config.CompilationCacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(config.CompilationCacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache: %w", err)
		}
		rc = rc.WithCompilationCache(cache)
	}

	wasm := wazero.NewRuntimeWithConfig(ctx, rc)
	if _, err := vmcall.Instantiate(ctx, wasm); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to instantiate vmcalls: %w", err),
			wasm.Close(ctx),
		)
	}

	node := config.Node
	if node == nil {
		node = ledger.New(store)
	}
	return &Runtime{
		config:    config,
		kv:        store,
		node:      node,
		contracts: contract.NewStore(store),
		wasm:      wasm,
		compiler:  compiler.New(wasm, config.ModuleCacheSize),
		locks:     map[common.Address]*sync.Mutex{},
	}, nil
}

// BuildContract parses a deploy-contract message and validates the code of
// the contract.
func (r *Runtime) BuildContract(data []byte) (*contract.Contract, error) {
	c, err := wire.ParseContract(data)
	if err != nil {
		return nil, err
	}
	if err := compiler.Validate(c.Code); err != nil {
		return nil, &wire.ContractBuildError{Field: wire.FieldCode, Err: err}
	}
	return c, nil
}

func (r *Runtime) ComputeAddress(c *contract.Contract) common.Address {
	return contract.ComputeAddress(c)
}

func (r *Runtime) StoreContract(c *contract.Contract, address common.Address) error {
	return r.contracts.Store(c, address)
}

// Deploy builds, validates and stores the contract encoded in the given
// deploy-contract message and returns its address.
func (r *Runtime) Deploy(data []byte) (common.Address, error) {
	c, err := r.BuildContract(data)
	if err != nil {
		return common.Address{}, err
	}
	address := r.ComputeAddress(c)
	if err := r.StoreContract(c, address); err != nil {
		return common.Address{}, err
	}
	log.Debugf("deployed contract %q at %v", c.Name, address)
	return address, nil
}

func (r *Runtime) BuildTransaction(data []byte) (*contract.Transaction, error) {
	return wire.ParseTransaction(data)
}

// LoadContract returns the contract deployed at the given address.
func (r *Runtime) LoadContract(address common.Address) (*contract.Contract, bool, error) {
	return r.contracts.Load(address)
}

// State returns the committed state root of the given contract.
func (r *Runtime) State(address common.Address) (common.State, error) {
	store, err := page.NewStore(r.kv, address, 0)
	if err != nil {
		return common.State{}, err
	}
	return store.Root(), nil
}

// PageHashes returns the hashes of all non-zero pages of the given contract.
func (r *Runtime) PageHashes(address common.Address) (map[page.Index]page.Hash, error) {
	store, err := page.NewStore(r.kv, address, 0)
	if err != nil {
		return nil, err
	}
	return store.Hashes(), nil
}

// Close releases the WebAssembly engine and all compiled modules.
func (r *Runtime) Close(ctx context.Context) error {
	r.compiler.Close(ctx)
	return r.wasm.Close(ctx)
}

func (r *Runtime) lock(address common.Address) func() {
	r.locksMutex.Lock()
	l, found := r.locks[address]
	if !found {
		l = &sync.Mutex{}
		r.locks[address] = l
	}
	r.locksMutex.Unlock()
	l.Lock()
	return l.Unlock
}
