// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package register

import (
	"fmt"

	"github.com/spacemeshos/svm/common"
)

// CellSize is the size of a register cell in bytes.
const CellSize = 8

const (
	Regs64Count  = 8
	Regs160Count = 8
	Regs256Count = 8
)

const (
	ErrInvalidWidth = common.ConstError("invalid register width")
	ErrInvalidIndex = common.ConstError("invalid register index")
	ErrTooLong      = common.ConstError("data exceeds register width")
	ErrMemoryAccess = common.ConstError("memory access out of bounds")
)

// Memory is the part of a guest's linear memory interface needed for
// copying between registers and memory.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// Counts configures the number of registers per width.
type Counts struct {
	Regs64  int
	Regs160 int
	Regs256 int
}

// DefaultCounts are the register counts used unless configured otherwise.
var DefaultCounts = Counts{
	Regs64:  Regs64Count,
	Regs160: Regs160Count,
	Regs256: Regs256Count,
}

// File is a register file with one bank of 8-byte cells per supported
// register width. A register of width w occupies ceil(w/64) contiguous cells
// of its bank; its value is formed by the first w/8 bytes of those cells.
type File struct {
	banks map[uint32]*bank
}

type bank struct {
	cellsPerRegister int
	count            int
	cells            []byte
}

// NewFile creates a zero-initialized register file.
func NewFile(counts Counts) *File {
	return &File{
		banks: map[uint32]*bank{
			64:  newBank(64, counts.Regs64),
			160: newBank(160, counts.Regs160),
			256: newBank(256, counts.Regs256),
		},
	}
}

func newBank(width uint32, count int) *bank {
	cellsPerRegister := int((width + 63) / 64)
	return &bank{
		cellsPerRegister: cellsPerRegister,
		count:            count,
		cells:            make([]byte, count*cellsPerRegister*CellSize),
	}
}

// register returns the backing bytes of the given register, limited to its
// width.
func (f *File) register(width uint32, index uint32) ([]byte, error) {
	b, found := f.banks[width]
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	if int64(index) >= int64(b.count) {
		return nil, fmt.Errorf("%w: %d for width %d", ErrInvalidIndex, index, width)
	}
	start := int(index) * b.cellsPerRegister * CellSize
	return b.cells[start : start+int(width/8)], nil
}

// Get returns a copy of the register's value, width/8 bytes long.
func (f *File) Get(width, index uint32) ([]byte, error) {
	reg, err := f.register(width, index)
	if err != nil {
		return nil, err
	}
	res := make([]byte, len(reg))
	copy(res, reg)
	return res, nil
}

// Set replaces the register's value. Shorter inputs are zero-padded on the
// right, longer inputs are rejected.
func (f *File) Set(width, index uint32, data []byte) error {
	reg, err := f.register(width, index)
	if err != nil {
		return err
	}
	if len(data) > len(reg) {
		return fmt.Errorf("%w: %d bytes for width %d", ErrTooLong, len(data), width)
	}
	n := copy(reg, data)
	clear(reg[n:])
	return nil
}

// CopyFromMemory loads length bytes of guest memory starting at ptr into the
// register. The length may not exceed width/8; missing bytes are zeroed.
func (f *File) CopyFromMemory(mem Memory, width, index, ptr, length uint32) error {
	if _, err := f.register(width, index); err != nil {
		return err
	}
	if length > width/8 {
		return fmt.Errorf("%w: %d bytes for width %d", ErrTooLong, length, width)
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return fmt.Errorf("%w: read of %d bytes at %d", ErrMemoryAccess, length, ptr)
	}
	return f.Set(width, index, data)
}

// CopyToMemory stores the first length bytes of the register into guest
// memory at ptr. The length may not exceed width/8.
func (f *File) CopyToMemory(mem Memory, width, index, length, ptr uint32) error {
	reg, err := f.register(width, index)
	if err != nil {
		return err
	}
	if length > uint32(len(reg)) {
		return fmt.Errorf("%w: %d bytes for width %d", ErrTooLong, length, width)
	}
	if !mem.Write(ptr, reg[:length]) {
		return fmt.Errorf("%w: write of %d bytes at %d", ErrMemoryAccess, length, ptr)
	}
	return nil
}
