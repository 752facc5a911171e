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
	"github.com/spacemeshos/svm/vm/register"
	"github.com/spacemeshos/svm/vm/vmcall"
)

// Config configures a Runtime.
type Config struct {
	// Node serves the balance vmcalls. If nil, balances are kept in a ledger
	// over the runtime's key-value store.
	Node vmcall.NodeAPI

	Registers        register.Counts
	MemoryLimitPages uint32 // < limit on the linear memory of an instance, in 64 KiB pages
	ModuleCacheSize  int    // < compiled modules kept per contract address, 0 disables caching

	// Interpreter selects the interpreting engine instead of the compiling
	// one. CompilationCacheDir, if set, persists compiled code across
	// restarts; it is only effective with the compiling engine.
	Interpreter         bool
	CompilationCacheDir string
}

func DefaultConfig() Config {
	return Config{
		Registers:        register.DefaultCounts,
		MemoryLimitPages: 16,
		ModuleCacheSize:  128,
	}
}

// Opts are the per-execution storage limits.
type Opts struct {
	MaxPages       uint32 // < page indices must be below this limit
	MaxPagesSlices uint32 // < slice indices must be below this limit
	CachedPages    int    // < page cache capacity, 0 selects MaxPages
	HashWorkers    int    // < goroutines hashing pages on commit, 0 hashes on the caller
}

func DefaultOpts() Opts {
	return Opts{
		MaxPages:       256,
		MaxPagesSlices: 1024,
	}
}
