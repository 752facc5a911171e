// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package kv

import (
	"github.com/spacemeshos/svm/common"
)

//go:generate mockgen -source store.go -destination store_mocks.go -package kv

const (
	ErrNotFound = common.ConstError("not found")
	ErrClosed   = common.ConstError("store closed")
)

// Key prefixes partitioning the shared store. Ranges must stay disjoint.
const (
	ContractPrefix  byte = 0x01 // < contract records, followed by the address
	PagePrefix      byte = 0x02 // < page records, followed by H(address ‖ page index)
	PageTablePrefix byte = 0x03 // < per-contract page hash tables, followed by the address
	BalancePrefix   byte = 0x04 // < account balances, followed by the address
)

// KeyValueStore is a flat, byte-keyed and byte-valued persistence layer shared
// by contracts, pages and balances.
type KeyValueStore interface {
	// Get returns the value stored for the given key or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put writes all pairs of the batch atomically. Either all of them become
	// visible or none of them does.
	Put(batch []Pair) error
	Close() error
}

// Pair is a single key/value entry of a write batch.
type Pair struct {
	Key   []byte
	Value []byte
}

// Key concatenates the given prefix and parts into a store key.
func Key(prefix byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += len(p)
	}
	res := make([]byte, 0, size)
	res = append(res, prefix)
	for _, p := range parts {
		res = append(res, p...)
	}
	return res
}
