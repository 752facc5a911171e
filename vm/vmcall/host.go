// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vmcall

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Namespace is the import module name under which vmcalls are exposed.
const Namespace = "svm"

// Trap is raised by a failing vmcall. It aborts the guest execution.
type Trap struct {
	Call string
	Err  error
}

func (t *Trap) Error() string {
	return fmt.Sprintf("vmcall %s failed: %v", t.Call, t.Err)
}

func (t *Trap) Unwrap() error {
	return t.Err
}

type hostFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	call    func(c *Context, mem Memory, stack []uint64) error
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func u32(v uint64) uint32 {
	return api.DecodeU32(v)
}

// hostFuncs lists all vmcalls in the order of their registration.
var hostFuncs = []hostFunc{
	{
		name:   "mem_to_reg_copy",
		params: []api.ValueType{i32, i32, i32, i32, i32},
		call: func(c *Context, mem Memory, s []uint64) error {
			return c.MemToRegCopy(mem, u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]))
		},
	},
	{
		name:   "reg_to_mem_copy",
		params: []api.ValueType{i32, i32, i32, i32, i32},
		call: func(c *Context, mem Memory, s []uint64) error {
			return c.RegToMemCopy(mem, u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]))
		},
	},
	{
		name:   "storage_read_to_reg",
		params: []api.ValueType{i32, i32, i32, i32, i32, i32},
		call: func(c *Context, _ Memory, s []uint64) error {
			return c.StorageReadToReg(u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]), u32(s[5]))
		},
	},
	{
		name:   "storage_read_to_mem",
		params: []api.ValueType{i32, i32, i32, i32, i32, i32},
		call: func(c *Context, mem Memory, s []uint64) error {
			return c.StorageReadToMem(mem, u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]), u32(s[5]))
		},
	},
	{
		name:   "storage_write_from_mem",
		params: []api.ValueType{i32, i32, i32, i32, i32, i32},
		call: func(c *Context, mem Memory, s []uint64) error {
			return c.StorageWriteFromMem(mem, u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]), u32(s[5]))
		},
	},
	{
		name:   "storage_write_from_reg",
		params: []api.ValueType{i32, i32, i32, i32, i32, i32},
		call: func(c *Context, _ Memory, s []uint64) error {
			return c.StorageWriteFromReg(u32(s[0]), u32(s[1]), u32(s[2]), u32(s[3]), u32(s[4]), u32(s[5]))
		},
	},
	{
		name:    "reg_read_le_i64",
		params:  []api.ValueType{i32, i32},
		results: []api.ValueType{i64},
		call: func(c *Context, _ Memory, s []uint64) error {
			value, err := c.RegReadLeI64(u32(s[0]), u32(s[1]))
			s[0] = api.EncodeI64(value)
			return err
		},
	},
	{
		name:   "reg_write_le_i64",
		params: []api.ValueType{i32, i32, i64},
		call: func(c *Context, _ Memory, s []uint64) error {
			return c.RegWriteLeI64(u32(s[0]), u32(s[1]), int64(s[2]))
		},
	},
	{
		name:    "get_balance_from_reg",
		params:  []api.ValueType{i32, i32},
		results: []api.ValueType{i64},
		call: func(c *Context, _ Memory, s []uint64) error {
			value, err := c.GetBalanceFromReg(u32(s[0]), u32(s[1]))
			s[0] = api.EncodeI64(value)
			return err
		},
	},
	{
		name:   "set_balance_from_reg",
		params: []api.ValueType{i32, i32, i64},
		call: func(c *Context, _ Memory, s []uint64) error {
			return c.SetBalanceFromReg(u32(s[0]), u32(s[1]), int64(s[2]))
		},
	},
}

// Names returns the names of all vmcalls exported under Namespace.
func Names() []string {
	res := make([]string, 0, len(hostFuncs))
	for _, f := range hostFuncs {
		res = append(res, f.name)
	}
	return res
}

func (f hostFunc) goFunc() api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		c := FromContext(ctx)
		if c == nil {
			panic(&Trap{Call: f.name, Err: ErrNoContext})
		}
		var mem Memory
		if m := mod.Memory(); m != nil {
			mem = m
		}
		if err := f.call(c, mem, stack); err != nil {
			panic(&Trap{Call: f.name, Err: err})
		}
	}
}

// Instantiate registers the vmcall host module in the given runtime. Guest
// modules importing from Namespace are linked against it; the execution
// context is resolved per call from the call's context.
func Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(Namespace)
	for _, f := range hostFuncs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.goFunc(), f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}
	return builder.Instantiate(ctx)
}
