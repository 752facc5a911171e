// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package wasmtest assembles small WebAssembly binaries for tests.
package wasmtest

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
	F32 byte = 0x7d
	F64 byte = 0x7c
)

// Opcodes used by tests.
const (
	OpUnreachable byte = 0x00
	OpBlockEmpty  byte = 0x40
	OpIf          byte = 0x04
	OpEnd         byte = 0x0b
	OpReturn      byte = 0x0f
	OpDrop        byte = 0x1a
	OpI32Load     byte = 0x28
	OpI32Store    byte = 0x36
	OpI64LtS      byte = 0x53
	OpI32Add      byte = 0x6a
	OpI64Add      byte = 0x7c
	OpI64Sub      byte = 0x7d
	OpF32Add      byte = 0x92
	OpI32Extend8S byte = 0xc0
)

// Import is an imported function.
type Import struct {
	Module  string
	Name    string
	Params  []byte
	Results []byte
}

// Func is a function defined by the module. Functions with a non-empty
// Export name are exported. The body is given without the final end opcode.
type Func struct {
	Export  string
	Params  []byte
	Results []byte
	Locals  []byte
	Body    []byte
}

// Global is a global defined by the module, initialized by a constant
// instruction given without the final end opcode.
type Global struct {
	Type    byte
	Mutable bool
	Init    []byte
}

// Module describes a module to assemble. If MemoryPages is positive, the
// module defines and exports a memory named "memory". If Start is set, the
// function at that position of Funcs is the module's start function.
type Module struct {
	Imports     []Import
	Funcs       []Func
	Globals     []Global
	MemoryPages uint32
	Start       *int
}

// Bytes encodes the module in the binary format.
func (m *Module) Bytes() []byte {
	res := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Each import and function gets its own type entry.
	var types [][]byte
	for _, imp := range m.Imports {
		types = append(types, funcType(imp.Params, imp.Results))
	}
	for _, f := range m.Funcs {
		types = append(types, funcType(f.Params, f.Results))
	}
	if len(types) > 0 {
		res = append(res, section(1, vector(types))...)
	}

	if len(m.Imports) > 0 {
		var imports [][]byte
		for i, imp := range m.Imports {
			entry := append(name(imp.Module), name(imp.Name)...)
			entry = append(entry, 0x00)
			entry = append(entry, uleb(uint64(i))...)
			imports = append(imports, entry)
		}
		res = append(res, section(2, vector(imports))...)
	}

	if len(m.Funcs) > 0 {
		var funcs [][]byte
		for i := range m.Funcs {
			funcs = append(funcs, uleb(uint64(len(m.Imports)+i)))
		}
		res = append(res, section(3, vector(funcs))...)
	}

	if m.MemoryPages > 0 {
		limits := append([]byte{0x00}, uleb(uint64(m.MemoryPages))...)
		res = append(res, section(5, vector([][]byte{limits}))...)
	}

	if len(m.Globals) > 0 {
		var globals [][]byte
		for _, g := range m.Globals {
			mutable := byte(0)
			if g.Mutable {
				mutable = 1
			}
			entry := append([]byte{g.Type, mutable}, g.Init...)
			entry = append(entry, OpEnd)
			globals = append(globals, entry)
		}
		res = append(res, section(6, vector(globals))...)
	}

	var exports [][]byte
	for i, f := range m.Funcs {
		if f.Export == "" {
			continue
		}
		entry := append(name(f.Export), 0x00)
		entry = append(entry, uleb(uint64(len(m.Imports)+i))...)
		exports = append(exports, entry)
	}
	if m.MemoryPages > 0 {
		exports = append(exports, append(name("memory"), 0x02, 0x00))
	}
	if len(exports) > 0 {
		res = append(res, section(7, vector(exports))...)
	}

	if m.Start != nil {
		res = append(res, section(8, uleb(uint64(len(m.Imports)+*m.Start)))...)
	}

	if len(m.Funcs) > 0 {
		var bodies [][]byte
		for _, f := range m.Funcs {
			var locals [][]byte
			for _, l := range f.Locals {
				locals = append(locals, []byte{0x01, l})
			}
			body := vector(locals)
			body = append(body, f.Body...)
			body = append(body, OpEnd)
			bodies = append(bodies, append(uleb(uint64(len(body))), body...))
		}
		res = append(res, section(10, vector(bodies))...)
	}
	return res
}

func funcType(params, results []byte) []byte {
	res := []byte{0x60}
	res = append(res, uleb(uint64(len(params)))...)
	res = append(res, params...)
	res = append(res, uleb(uint64(len(results)))...)
	res = append(res, results...)
	return res
}

func section(id byte, content []byte) []byte {
	res := []byte{id}
	res = append(res, uleb(uint64(len(content)))...)
	return append(res, content...)
}

func vector(items [][]byte) []byte {
	res := uleb(uint64(len(items)))
	for _, item := range items {
		res = append(res, item...)
	}
	return res
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var res []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		res = append(res, b)
		if v == 0 {
			return res
		}
	}
}

func sleb(v int64) []byte {
	var res []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		res = append(res, b)
		if done {
			return res
		}
	}
}
