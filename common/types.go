// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const (
	AddressSize = 20
	HashSize    = 32
	BalanceSize = 16
)

// Address identifies a deployed contract or an external account.
type Address [AddressSize]byte

// AddressFromBytes creates an address from the given bytes. Shorter inputs
// are right-padded with zeros, longer inputs are truncated.
func AddressFromBytes(data []byte) Address {
	var res Address
	copy(res[:], data)
	return res
}

// AddressFromUint32 creates an address holding the given value in its first
// four bytes, in little-endian order. Mainly used by tests.
func AddressFromUint32(v uint32) Address {
	var res Address
	binary.LittleEndian.PutUint32(res[:], v)
	return res
}

func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// Hash is a 32-byte Keccak-256 digest.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// State is the root of a contract's storage. The zero value is the root of a
// contract without any non-zero pages.
type State [HashSize]byte

// EmptyState is the root of a contract that never wrote to its storage.
var EmptyState = State{}

func (s State) String() string {
	return hexutil.Encode(s[:])
}

// StateFromHex parses a 0x-prefixed, 32-byte hex string.
func StateFromHex(s string) (State, error) {
	data, err := hexutil.Decode(s)
	if err != nil {
		return State{}, err
	}
	if len(data) != HashSize {
		return State{}, fmt.Errorf("invalid state length %d, expected %d", len(data), HashSize)
	}
	return State(data), nil
}

// AddressFromHex parses a 0x-prefixed, 20-byte hex string.
func AddressFromHex(s string) (Address, error) {
	data, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, err
	}
	if len(data) != AddressSize {
		return Address{}, fmt.Errorf("invalid address length %d, expected %d", len(data), AddressSize)
	}
	return Address(data), nil
}

// Balance is an unsigned 128-bit amount stored in little-endian order.
type Balance [BalanceSize]byte

const ErrBalanceOverflow = ConstError("balance exceeds 128 bits")

// NewBalance creates a balance from a 64-bit value.
func NewBalance(v uint64) Balance {
	var res Balance
	binary.LittleEndian.PutUint64(res[:8], v)
	return res
}

// BalanceFromUint256 converts the given value into a balance, failing if it
// does not fit into 128 bits.
func BalanceFromUint256(v *uint256.Int) (Balance, error) {
	if v.BitLen() > 8*BalanceSize {
		return Balance{}, ErrBalanceOverflow
	}
	be := v.Bytes32()
	var res Balance
	for i := range BalanceSize {
		res[i] = be[31-i]
	}
	return res, nil
}

// Uint256 returns the balance as a 256-bit integer.
func (b Balance) Uint256() *uint256.Int {
	var be [BalanceSize]byte
	for i := range BalanceSize {
		be[i] = b[BalanceSize-1-i]
	}
	return new(uint256.Int).SetBytes(be[:])
}

// Int64 returns the balance as a signed 64-bit value if it fits.
func (b Balance) Int64() (int64, bool) {
	v := b.Uint256()
	if !v.IsUint64() || v.Uint64() > 1<<63-1 {
		return 0, false
	}
	return int64(v.Uint64()), true
}

func (b Balance) String() string {
	return b.Uint256().Dec()
}
