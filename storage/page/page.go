// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package page

import (
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/svm/common"
)

// Size is the size of a page in bytes.
const Size = 4096

const (
	ErrOutOfRange       = common.ConstError("page index out of range")
	ErrInvalidPageSize  = common.ConstError("invalid page size")
	ErrSliceOutOfBounds = common.ConstError("slice exceeds page bounds")
	ErrSliceLength      = common.ConstError("slice data does not match layout length")
	ErrTooManySlices    = common.ConstError("slice index exceeds slice limit")
	ErrCacheFull        = common.ConstError("page cache is full of dirty pages")
)

// Index identifies a page within a contract's storage.
type Index uint32

// SliceIndex labels a slice of a page. It is chosen by the guest and allows
// multiple disjoint slices over a single page.
type SliceIndex uint32

// Hash is the digest of a page, bound to its contract and index.
type Hash = common.Hash

func (i Index) bytes() []byte {
	var res [4]byte
	binary.BigEndian.PutUint32(res[:], uint32(i))
	return res[:]
}

// SliceLayout describes a byte range of a page.
type SliceLayout struct {
	Page   Index
	Slice  SliceIndex
	Offset uint32
	Length uint32
}

// Check verifies the layout stays within page bounds.
func (l SliceLayout) Check() error {
	if uint64(l.Offset)+uint64(l.Length) > Size {
		return fmt.Errorf("%w: offset %d, length %d", ErrSliceOutOfBounds, l.Offset, l.Length)
	}
	return nil
}

func (l SliceLayout) end() uint32 {
	return l.Offset + l.Length
}

// Record is a page together with its index and hash, as produced by a commit.
type Record struct {
	Index Index
	Hash  Hash
	Data  []byte
}

// ZeroPage returns a freshly allocated page of zeros.
func ZeroPage() []byte {
	return make([]byte, Size)
}

var zeroPage [Size]byte

func isZero(data []byte) bool {
	return string(data) == string(zeroPage[:])
}
