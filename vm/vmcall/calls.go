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
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/storage/page"
	"github.com/spacemeshos/svm/vm/register"
)

const (
	ErrInvalidMemory   = common.ConstError("invalid memory index")
	ErrMemoryAccess    = common.ConstError("memory access out of bounds")
	ErrNoNode          = common.ConstError("no node api configured")
	ErrNoContext       = common.ConstError("no execution context attached")
	ErrBalanceRange    = common.ConstError("balance out of i64 range")
	ErrNegativeBalance = common.ConstError("negative balance")
	ErrAddressWidth    = common.ConstError("register too narrow for an address")
)

// Memory is the guest linear memory accessed by vmcalls.
type Memory = register.Memory

func memory(mem Memory, memIdx uint32) (Memory, error) {
	if memIdx != 0 || mem == nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMemory, memIdx)
	}
	return mem, nil
}

func layout(pageIdx, sliceIdx, offset, length uint32) page.SliceLayout {
	return page.SliceLayout{
		Page:   page.Index(pageIdx),
		Slice:  page.SliceIndex(sliceIdx),
		Offset: offset,
		Length: length,
	}
}

// MemToRegCopy copies length bytes of guest memory into a register.
func (c *Context) MemToRegCopy(mem Memory, memIdx, memPtr, length, regWidth, regIdx uint32) error {
	mem, err := memory(mem, memIdx)
	if err != nil {
		return err
	}
	return c.Registers.CopyFromMemory(mem, regWidth, regIdx, memPtr, length)
}

// RegToMemCopy copies the first length bytes of a register into guest memory.
func (c *Context) RegToMemCopy(mem Memory, regWidth, regIdx, length, memIdx, memPtr uint32) error {
	mem, err := memory(mem, memIdx)
	if err != nil {
		return err
	}
	return c.Registers.CopyToMemory(mem, regWidth, regIdx, length, memPtr)
}

// readSlice reads a storage slice; slices never written read as zeros.
func (c *Context) readSlice(pageIdx, sliceIdx, offset, length uint32) ([]byte, error) {
	data, found, err := c.Storage.ReadSlice(layout(pageIdx, sliceIdx, offset, length))
	if err != nil {
		return nil, err
	}
	if !found {
		return make([]byte, length), nil
	}
	return data, nil
}

func (c *Context) StorageReadToReg(pageIdx, sliceIdx, offset, length, regWidth, regIdx uint32) error {
	data, err := c.readSlice(pageIdx, sliceIdx, offset, length)
	if err != nil {
		return err
	}
	return c.Registers.Set(regWidth, regIdx, data)
}

func (c *Context) StorageReadToMem(mem Memory, pageIdx, sliceIdx, offset, length, memIdx, memPtr uint32) error {
	mem, err := memory(mem, memIdx)
	if err != nil {
		return err
	}
	data, err := c.readSlice(pageIdx, sliceIdx, offset, length)
	if err != nil {
		return err
	}
	if !mem.Write(memPtr, data) {
		return fmt.Errorf("%w: write of %d bytes at %d", ErrMemoryAccess, length, memPtr)
	}
	return nil
}

func (c *Context) StorageWriteFromMem(mem Memory, memIdx, memPtr, length, pageIdx, sliceIdx, offset uint32) error {
	mem, err := memory(mem, memIdx)
	if err != nil {
		return err
	}
	data, ok := mem.Read(memPtr, length)
	if !ok {
		return fmt.Errorf("%w: read of %d bytes at %d", ErrMemoryAccess, length, memPtr)
	}
	return c.Storage.WriteSlice(layout(pageIdx, sliceIdx, offset, length), data)
}

func (c *Context) StorageWriteFromReg(regWidth, regIdx, length, pageIdx, sliceIdx, offset uint32) error {
	value, err := c.Registers.Get(regWidth, regIdx)
	if err != nil {
		return err
	}
	if length > uint32(len(value)) {
		return fmt.Errorf("%w: %d bytes for width %d", register.ErrTooLong, length, regWidth)
	}
	return c.Storage.WriteSlice(layout(pageIdx, sliceIdx, offset, length), value[:length])
}

// RegReadLeI64 interprets the first 8 bytes of a register as a little-endian
// signed integer.
func (c *Context) RegReadLeI64(regWidth, regIdx uint32) (int64, error) {
	value, err := c.Registers.Get(regWidth, regIdx)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(value[:8])), nil
}

// RegWriteLeI64 stores the value little-endian into the first 8 bytes of a
// register, zeroing the remaining bytes.
func (c *Context) RegWriteLeI64(regWidth, regIdx uint32, value int64) error {
	var data [8]byte
	binary.LittleEndian.PutUint64(data[:], uint64(value))
	return c.Registers.Set(regWidth, regIdx, data[:])
}

func (c *Context) addressFromReg(regWidth, regIdx uint32) (common.Address, error) {
	value, err := c.Registers.Get(regWidth, regIdx)
	if err != nil {
		return common.Address{}, err
	}
	if len(value) < common.AddressSize {
		return common.Address{}, fmt.Errorf("%w: %d", ErrAddressWidth, regWidth)
	}
	return common.AddressFromBytes(value[:common.AddressSize]), nil
}

// GetBalanceFromReg returns the balance of the account whose address is held
// in the first 20 bytes of the register. Updates made earlier in the same
// execution are observed.
func (c *Context) GetBalanceFromReg(regWidth, regIdx uint32) (int64, error) {
	address, err := c.addressFromReg(regWidth, regIdx)
	if err != nil {
		return 0, err
	}
	balance, found := c.balances[address]
	if !found {
		if c.node == nil {
			return 0, ErrNoNode
		}
		balance, err = c.node.GetBalance(c.NodeData, address)
		if err != nil {
			return 0, err
		}
	}
	res, ok := balance.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %v of %v", ErrBalanceRange, balance, address)
	}
	return res, nil
}

// SetBalanceFromReg records a new balance for the account whose address is
// held in the register. The update takes effect on commit.
func (c *Context) SetBalanceFromReg(regWidth, regIdx uint32, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeBalance, amount)
	}
	address, err := c.addressFromReg(regWidth, regIdx)
	if err != nil {
		return err
	}
	c.balances[address] = common.NewBalance(uint64(amount))
	return nil
}
