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

func svm(name string, params []byte, results ...byte) Import {
	return Import{Module: "svm", Name: name, Params: params, Results: results}
}

func i32s(n int) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = I32
	}
	return res
}

// Transfer assembles a contract exporting
//
//	execute(src_mem_idx, src_ptr, dst_mem_idx, dst_ptr i32, amount i64) i32
//
// It moves amount from the account whose address is stored at src_ptr to
// the one at dst_ptr and returns 0, or returns -1 if the source balance is
// insufficient. On success it also rewrites the first 8 bytes of page 0.
func Transfer() []byte {
	const (
		memToRegCopy = iota
		getBalance
		setBalance
		storageReadToReg
		storageWriteFromReg
	)
	const (
		srcIdx = iota
		srcPtr
		dstIdx
		dstPtr
		amount
		srcBalance
		dstBalance
	)
	module := Module{
		Imports: []Import{
			svm("mem_to_reg_copy", i32s(5)),
			svm("get_balance_from_reg", i32s(2), I64),
			svm("set_balance_from_reg", []byte{I32, I32, I64}),
			svm("storage_read_to_reg", i32s(6)),
			svm("storage_write_from_reg", i32s(6)),
		},
		Funcs: []Func{{
			Export:  "execute",
			Params:  []byte{I32, I32, I32, I32, I64},
			Results: []byte{I32},
			Locals:  []byte{I64, I64},
			Body: Code(
				LocalGet(srcIdx), LocalGet(srcPtr), I32Const(32), I32Const(256), I32Const(0), Call(memToRegCopy),
				CallI32s(getBalance, 256, 0), LocalSet(srcBalance),

				LocalGet(srcBalance), LocalGet(amount), Op(OpI64LtS),
				Op(OpIf, OpBlockEmpty), I32Const(-1), Op(OpReturn), Op(OpEnd),

				LocalGet(dstIdx), LocalGet(dstPtr), I32Const(32), I32Const(256), I32Const(1), Call(memToRegCopy),
				CallI32s(getBalance, 256, 1), LocalSet(dstBalance),

				I32Const(256), I32Const(0), LocalGet(srcBalance), LocalGet(amount), Op(OpI64Sub), Call(setBalance),
				I32Const(256), I32Const(1), LocalGet(dstBalance), LocalGet(amount), Op(OpI64Add), Call(setBalance),

				CallI32s(storageReadToReg, 0, 0, 0, 8, 64, 0),
				CallI32s(storageWriteFromReg, 64, 0, 8, 0, 0, 0),
				I32Const(0),
			),
		}},
		MemoryPages: 1,
	}
	return module.Bytes()
}

// Storage assembles a contract exercising register and storage vmcalls:
//
//	write_slice(ptr, len i32)   stores memory[ptr:ptr+len] to page 1, slice 0, offset 100
//	read_slice(ptr i32) i32     loads page 1, slice 0, offset 100, length 3 to ptr and
//	                            returns the i32 at ptr
//	copy(ptr i32) i32           copies 32 bytes at ptr through register 256:0 to
//	                            address 64 and returns the i32 at 64
//	reg_i64(v i64) i64          round-trips v through register 64:3
//	write_then_trap(ptr, len)   like write_slice, then traps
//	bad_memory()                uses memory index 1 and traps
func Storage() []byte {
	const (
		memToRegCopy = iota
		regToMemCopy
		storageWriteFromMem
		storageReadToMem
		regWriteLeI64
		regReadLeI64
	)
	writeSlice := Code(
		I32Const(0), LocalGet(0), LocalGet(1), I32Const(1), I32Const(0), I32Const(100), Call(storageWriteFromMem),
	)
	module := Module{
		Imports: []Import{
			svm("mem_to_reg_copy", i32s(5)),
			svm("reg_to_mem_copy", i32s(5)),
			svm("storage_write_from_mem", i32s(6)),
			svm("storage_read_to_mem", i32s(6)),
			svm("reg_write_le_i64", []byte{I32, I32, I64}),
			svm("reg_read_le_i64", i32s(2), I64),
		},
		Funcs: []Func{
			{
				Export: "write_slice",
				Params: []byte{I32, I32},
				Body:   writeSlice,
			},
			{
				Export:  "read_slice",
				Params:  []byte{I32},
				Results: []byte{I32},
				Body: Code(
					I32Const(1), I32Const(0), I32Const(100), I32Const(3), I32Const(0), LocalGet(0), Call(storageReadToMem),
					LocalGet(0), I32Load(0),
				),
			},
			{
				Export:  "copy",
				Params:  []byte{I32},
				Results: []byte{I32},
				Body: Code(
					I32Const(0), LocalGet(0), I32Const(32), I32Const(256), I32Const(0), Call(memToRegCopy),
					CallI32s(regToMemCopy, 256, 0, 32, 0, 64),
					I32Const(64), I32Load(0),
				),
			},
			{
				Export:  "reg_i64",
				Params:  []byte{I64},
				Results: []byte{I64},
				Body: Code(
					I32Const(64), I32Const(3), LocalGet(0), Call(regWriteLeI64),
					CallI32s(regReadLeI64, 64, 3),
				),
			},
			{
				Export: "write_then_trap",
				Params: []byte{I32, I32},
				Body:   Code(writeSlice, Op(OpUnreachable)),
			},
			{
				Export: "bad_memory",
				Body:   CallI32s(memToRegCopy, 1, 0, 8, 64, 0),
			},
		},
		MemoryPages: 1,
	}
	return module.Bytes()
}

// FloatAdd assembles a module using f32.add.
func FloatAdd() []byte {
	module := Module{
		Funcs: []Func{{
			Export: "run",
			Body:   Code(F32Const(1), F32Const(2), Op(OpF32Add), Op(OpDrop)),
		}},
	}
	return module.Bytes()
}

// UnknownImport assembles a valid module importing env.unknown.
func UnknownImport() []byte {
	module := Module{
		Imports: []Import{{Module: "env", Name: "unknown"}},
		Funcs: []Func{{
			Export: "run",
			Body:   Call(0),
		}},
	}
	return module.Bytes()
}

// Empty assembles a module exporting a single function doing nothing.
func Empty() []byte {
	module := Module{
		Funcs:       []Func{{Export: "run"}},
		MemoryPages: 1,
	}
	return module.Bytes()
}

// StartWrite assembles a contract whose start function writes the
// little-endian i64 0x0807060504030201 through register 64:0 to page 0,
// slice 0, offset 0. It exports run(), which does nothing.
func StartWrite() []byte {
	const (
		regWriteLeI64 = iota
		storageWriteFromReg
	)
	start := 0
	module := Module{
		Imports: []Import{
			svm("reg_write_le_i64", []byte{I32, I32, I64}),
			svm("storage_write_from_reg", i32s(6)),
		},
		Funcs: []Func{
			{
				Body: Code(
					I32Const(64), I32Const(0), I64Const(0x0807060504030201), Call(regWriteLeI64),
					CallI32s(storageWriteFromReg, 64, 0, 8, 0, 0, 0),
				),
			},
			{Export: "run"},
		},
		MemoryPages: 1,
		Start:       &start,
	}
	return module.Bytes()
}
