// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xsoniclabs/tracy"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/spacemeshos/svm/common"
	"github.com/tetratelabs/wazero"
)

// Middleware transforms or checks a module before it is compiled. Middlewares
// run in the order they are installed; an error aborts the compilation.
type Middleware interface {
	Name() string
	Process(code []byte) ([]byte, error)
}

// Engine compiles WebAssembly binaries. It is implemented by wazero.Runtime.
type Engine interface {
	CompileModule(ctx context.Context, binary []byte) (wazero.CompiledModule, error)
}

// Compiler turns contract code into modules ready for instantiation. The
// ValidationMiddleware always runs first; further middlewares, e.g. for
// metering, may be appended.
type Compiler struct {
	engine      Engine
	middlewares []Middleware

	mu       sync.Mutex
	cache    *lru.BasicLRU[common.Address, *cachedModule]
	capacity int
}

// cachedModule tracks the executions using a cached module. A module evicted
// from the cache is closed once its last user released it.
type cachedModule struct {
	module  wazero.CompiledModule
	users   int
	evicted bool
}

// New creates a compiler targeting the given engine. If cacheSize is
// positive, compiled modules are cached per contract address.
func New(engine Engine, cacheSize int, middlewares ...Middleware) *Compiler {
	c := &Compiler{
		engine:      engine,
		middlewares: append([]Middleware{ValidationMiddleware{}}, middlewares...),
		capacity:    cacheSize,
	}
	if cacheSize > 0 {
		cache := lru.NewBasicLRU[common.Address, *cachedModule](cacheSize)
		c.cache = &cache
	}
	return c
}

// Compile runs all middlewares over the code and compiles the result.
func (c *Compiler) Compile(ctx context.Context, code []byte) (wazero.CompiledModule, error) {
	zone := tracy.ZoneBegin("compiler::Compile")
	defer zone.End()

	var err error
	for _, m := range c.middlewares {
		code, err = m.Process(code)
		if err != nil {
			return nil, fmt.Errorf("%s middleware: %w", m.Name(), err)
		}
	}
	return c.engine.CompileModule(ctx, code)
}

// CompileContract compiles the code of the contract at the given address,
// re-using a previously compiled module if available. Contract code is
// immutable, so the address identifies the module. The returned release
// function must be called once the module is no longer used; modules
// dropped from the cache, or never cached, are closed by it.
func (c *Compiler) CompileContract(ctx context.Context, address common.Address, code []byte) (wazero.CompiledModule, func(), error) {
	if c.cache == nil {
		module, err := c.Compile(ctx, code)
		if err != nil {
			return nil, nil, err
		}
		return module, func() { _ = module.Close(ctx) }, nil
	}

	c.mu.Lock()
	entry, found := c.cache.Get(address)
	if found {
		entry.users++
		c.mu.Unlock()
		return entry.module, c.releaser(ctx, entry), nil
	}
	c.mu.Unlock()

	module, err := c.Compile(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, found := c.cache.Get(address); found {
		// Compiled concurrently by another execution.
		_ = module.Close(ctx)
		existing.users++
		return existing.module, c.releaser(ctx, existing), nil
	}
	if c.cache.Len() >= c.capacity {
		if _, oldest, ok := c.cache.RemoveOldest(); ok {
			c.evict(ctx, oldest)
		}
	}
	entry = &cachedModule{module: module, users: 1}
	c.cache.Add(address, entry)
	return module, c.releaser(ctx, entry), nil
}

// Close closes all cached modules not in use and drops the cache content.
// Modules still in use are closed on release.
func (c *Compiler) Close(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.cache.Len() > 0 {
		_, entry, _ := c.cache.RemoveOldest()
		c.evict(ctx, entry)
	}
}

// evict must be called with mu held.
func (c *Compiler) evict(ctx context.Context, entry *cachedModule) {
	entry.evicted = true
	if entry.users == 0 {
		_ = entry.module.Close(ctx)
	}
}

func (c *Compiler) releaser(ctx context.Context, entry *cachedModule) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.users--
			if entry.evicted && entry.users == 0 {
				_ = entry.module.Close(ctx)
			}
		})
	}
}
