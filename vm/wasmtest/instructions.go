// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wasmtest

import (
	"encoding/binary"
	"math"
)

// Code concatenates instructions.
func Code(parts ...[]byte) []byte {
	var res []byte
	for _, p := range parts {
		res = append(res, p...)
	}
	return res
}

func Op(ops ...byte) []byte {
	return ops
}

func I32Const(v int32) []byte {
	return append([]byte{0x41}, sleb(int64(v))...)
}

func I64Const(v int64) []byte {
	return append([]byte{0x42}, sleb(v)...)
}

func F32Const(v float32) []byte {
	res := []byte{0x43, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(res[1:], math.Float32bits(v))
	return res
}

func LocalGet(idx uint32) []byte {
	return append([]byte{0x20}, uleb(uint64(idx))...)
}

func LocalSet(idx uint32) []byte {
	return append([]byte{0x21}, uleb(uint64(idx))...)
}

func Call(idx uint32) []byte {
	return append([]byte{0x10}, uleb(uint64(idx))...)
}

// I32Store stores with alignment 2 and the given offset.
func I32Store(offset uint32) []byte {
	return append([]byte{OpI32Store, 0x02}, uleb(uint64(offset))...)
}

// I32Load loads with alignment 2 and the given offset.
func I32Load(offset uint32) []byte {
	return append([]byte{OpI32Load, 0x02}, uleb(uint64(offset))...)
}

// CallI32s pushes the given constants and calls the function.
func CallI32s(idx uint32, args ...int32) []byte {
	var res []byte
	for _, a := range args {
		res = append(res, I32Const(a)...)
	}
	return append(res, Call(idx)...)
}
