// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package contract

import (
	"fmt"

	"github.com/spacemeshos/svm/common"
)

// Contract is a deployed WebAssembly program. Contracts are immutable once
// stored.
type Contract struct {
	Version uint32
	Name    string
	Author  common.Address
	Admins  []common.Address
	Code    []byte
}

// ComputeAddress derives the address a contract is deployed at. The address
// is the 20-byte prefix of Keccak256(author ‖ name ‖ code).
func ComputeAddress(c *Contract) common.Address {
	hash := common.Keccak256(c.Author[:], []byte(c.Name), c.Code)
	return common.AddressFromBytes(hash[:common.AddressSize])
}

// Transaction is a call of an exported function of a deployed contract.
type Transaction struct {
	Version  uint32
	Contract common.Address
	Sender   common.Address
	FuncName string
	FuncArgs []ArgValue
}

// ArgType is the wire tag of an argument.
type ArgType byte

const (
	ArgI32   ArgType = 0
	ArgI64   ArgType = 1
	ArgFixed ArgType = 2
	ArgSlice ArgType = 3
)

func (t ArgType) String() string {
	switch t {
	case ArgI32:
		return "i32"
	case ArgI64:
		return "i64"
	case ArgFixed:
		return "fixed"
	case ArgSlice:
		return "slice"
	}
	return fmt.Sprintf("ArgType(%d)", byte(t))
}

// IntType selects whether an offset or length derived from an argument is
// passed to the guest as a 32 or a 64 bit integer.
type IntType byte

const (
	IntI32 IntType = 0
	IntI64 IntType = 1
)

func (t IntType) Valid() bool {
	return t == IntI32 || t == IntI64
}

func (t IntType) String() string {
	switch t {
	case IntI32:
		return "i32"
	case IntI64:
		return "i64"
	}
	return fmt.Sprintf("IntType(%d)", byte(t))
}

// ArgValue is a single function argument. It is one of I32, I64, Fixed and
// Slice.
type ArgValue interface {
	Type() ArgType
}

// I32 is passed to the guest as is.
type I32 uint32

// I64 is passed to the guest as is.
type I64 uint64

// Fixed is a byte array copied into the linear memory of the instance. The
// guest receives the offset of the copy, typed by OffsetType.
type Fixed struct {
	OffsetType IntType
	Data       []byte
}

// Slice is a blob of variable length. The guest would receive offset and
// length; execution of slice arguments is not supported yet.
type Slice struct {
	OffsetType IntType
	LenType    IntType
	Data       []byte
}

func (I32) Type() ArgType   { return ArgI32 }
func (I64) Type() ArgType   { return ArgI64 }
func (Fixed) Type() ArgType { return ArgFixed }
func (Slice) Type() ArgType { return ArgSlice }
