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
	"bytes"
	"fmt"

	"github.com/go-interpreter/wagon/disasm"
	"github.com/go-interpreter/wagon/wasm"
	"github.com/spacemeshos/svm/common"
)

const (
	ErrDecode          = common.ConstError("failed to decode module")
	ErrForbiddenOpcode = common.ConstError("forbidden opcode")
	ErrForbiddenType   = common.ConstError("forbidden value type")
)

// allowedOpcodes is the deterministic subset of the WebAssembly MVP
// instruction set accepted for contracts:
//
//	0x00-0x11  control flow (unreachable .. call_indirect)
//	0x1a-0x1b  drop, select
//	0x20-0x24  local.get/set/tee, global.get/set
//	0x28-0x29  i32.load, i64.load
//	0x2c-0x35  narrow integer loads
//	0x36-0x37  i32.store, i64.store
//	0x3a-0x3e  narrow integer stores
//	0x3f-0x40  memory.size, memory.grow
//	0x41-0x42  i32.const, i64.const
//	0x45-0x5a  integer tests and comparisons
//	0x67-0x8a  integer arithmetic, bitwise and shift operations
//	0xa7       i32.wrap_i64
//	0xac-0xad  i64.extend_i32_s, i64.extend_i32_u
//
// Anything else, in particular all floating point instructions, is rejected.
// Post-MVP opcodes (SIMD, threads, bulk memory, sign extension, saturating
// truncation) are not even decoded.
var allowedOpcodes = func() [256]bool {
	var res [256]bool
	ranges := [][2]int{
		{0x00, 0x11},
		{0x1a, 0x1b},
		{0x20, 0x24},
		{0x28, 0x29},
		{0x2c, 0x35},
		{0x36, 0x37},
		{0x3a, 0x3e},
		{0x3f, 0x40},
		{0x41, 0x42},
		{0x45, 0x5a},
		{0x67, 0x8a},
		{0xa7, 0xa7},
		{0xac, 0xad},
	}
	for _, r := range ranges {
		for op := r[0]; op <= r[1]; op++ {
			res[op] = true
		}
	}
	return res
}()

// IsAllowedOpcode reports whether the given opcode is on the allow-list.
func IsAllowedOpcode(op byte) bool {
	return allowedOpcodes[op]
}

// ValidationMiddleware rejects modules that could behave
// non-deterministically across peers.
type ValidationMiddleware struct{}

func (ValidationMiddleware) Name() string {
	return "validation"
}

func (ValidationMiddleware) Process(code []byte) ([]byte, error) {
	if err := Validate(code); err != nil {
		return nil, err
	}
	return code, nil
}

// Validate checks the given module against the deterministic allow-list.
func Validate(code []byte) error {
	module, err := wasm.DecodeModule(bytes.NewReader(code))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if module.Types != nil {
		for i, sig := range module.Types.Entries {
			for _, t := range sig.ParamTypes {
				if err := checkValueType(t); err != nil {
					return fmt.Errorf("type %d: %w", i, err)
				}
			}
			for _, t := range sig.ReturnTypes {
				if err := checkValueType(t); err != nil {
					return fmt.Errorf("type %d: %w", i, err)
				}
			}
		}
	}

	if module.Import != nil {
		for _, entry := range module.Import.Entries {
			if global, ok := entry.Type.(wasm.GlobalVarImport); ok {
				if err := checkValueType(global.Type.Type); err != nil {
					return fmt.Errorf("import %s.%s: %w", entry.ModuleName, entry.FieldName, err)
				}
			}
		}
	}

	if module.Global != nil {
		for i, global := range module.Global.Globals {
			if err := checkValueType(global.Type.Type); err != nil {
				return fmt.Errorf("global %d: %w", i, err)
			}
		}
	}

	if module.Code != nil {
		for i, body := range module.Code.Bodies {
			if err := checkBody(body); err != nil {
				return fmt.Errorf("function body %d: %w", i, err)
			}
		}
	}
	return nil
}

func checkValueType(t wasm.ValueType) error {
	switch t {
	case wasm.ValueTypeI32, wasm.ValueTypeI64:
		return nil
	}
	return fmt.Errorf("%w: %v", ErrForbiddenType, t)
}

func checkBody(body wasm.FunctionBody) error {
	for _, local := range body.Locals {
		if err := checkValueType(local.Type); err != nil {
			return fmt.Errorf("local: %w", err)
		}
	}
	instrs, err := disasm.Disassemble(body.Code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForbiddenOpcode, err)
	}
	for _, instr := range instrs {
		if !allowedOpcodes[instr.Op.Code] {
			return fmt.Errorf("%w: %s (0x%02x)", ErrForbiddenOpcode, instr.Op.Name, instr.Op.Code)
		}
		for _, imm := range instr.Immediates {
			if blockType, ok := imm.(wasm.BlockType); ok && blockType != wasm.BlockTypeEmpty {
				if err := checkValueType(wasm.ValueType(blockType)); err != nil {
					return fmt.Errorf("block type: %w", err)
				}
			}
		}
	}
	return nil
}
