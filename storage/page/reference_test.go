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
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/stretchr/testify/require"
)

// referencePages is a naive model of a contract's storage: writes are
// applied to full pages immediately and the state is recomputed from
// scratch.
type referencePages struct {
	address   common.Address
	current   map[Index][]byte
	committed map[Index][]byte
}

func newReferencePages(address common.Address) *referencePages {
	return &referencePages{
		address:   address,
		current:   map[Index][]byte{},
		committed: map[Index][]byte{},
	}
}

func (r *referencePages) page(idx Index) []byte {
	if data, found := r.current[idx]; found {
		return data
	}
	data := ZeroPage()
	r.current[idx] = data
	return data
}

func (r *referencePages) write(layout SliceLayout, data []byte) {
	copy(r.page(layout.Page)[layout.Offset:], data)
}

func (r *referencePages) read(layout SliceLayout) []byte {
	return bytes.Clone(r.page(layout.Page)[layout.Offset : layout.Offset+layout.Length])
}

func (r *referencePages) commit() common.State {
	r.committed = map[Index][]byte{}
	for idx, data := range r.current {
		r.committed[idx] = bytes.Clone(data)
	}
	state := common.EmptyState
	for idx := Index(0); idx < 16; idx++ {
		data, found := r.committed[idx]
		if !found || isZero(data) {
			continue
		}
		var be [4]byte
		binary.BigEndian.PutUint32(be[:], uint32(idx))
		hash := common.Keccak256(r.address[:], be[:], data)
		state = common.State(common.Keccak256(state[:], be[:], hash[:]))
	}
	return state
}

func (r *referencePages) discard() {
	r.current = map[Index][]byte{}
	for idx, data := range r.committed {
		r.current[idx] = bytes.Clone(data)
	}
}

func TestSliceCache_MatchesReferenceModel(t *testing.T) {
	require := require.New(t)
	db := kv.NewMemory()
	address := common.Address{0x42}
	cache := newTestSliceCache(t, db, address)
	reference := newReferencePages(address)
	rnd := rand.New(rand.NewSource(17))

	randomLayout := func() SliceLayout {
		offset := uint32(rnd.Intn(Size - 1))
		length := uint32(1 + rnd.Intn(64))
		if offset+length > Size {
			length = Size - offset
		}
		return SliceLayout{
			Page:   Index(rnd.Intn(4)),
			Slice:  SliceIndex(rnd.Intn(4)),
			Offset: offset,
			Length: length,
		}
	}

	for step := 0; step < 2000; step++ {
		switch op := rnd.Intn(20); {
		case op < 10:
			layout := randomLayout()
			data := make([]byte, layout.Length)
			rnd.Read(data)
			if rnd.Intn(4) == 0 {
				data = make([]byte, layout.Length)
			}
			require.NoError(cache.WriteSlice(layout, data), "step %d", step)
			reference.write(layout, data)
		case op < 17:
			layout := randomLayout()
			data, found, err := cache.ReadSlice(layout)
			require.NoError(err, "step %d", step)
			want := reference.read(layout)
			if found {
				require.Equal(want, data, "step %d: read of %+v", step, layout)
			} else {
				require.Equal(make([]byte, layout.Length), want, "step %d: read of %+v", step, layout)
			}
		case op < 19:
			state, err := cache.Commit()
			require.NoError(err, "step %d", step)
			require.Equal(reference.commit(), state, "step %d", step)
		default:
			cache.Discard()
			reference.discard()
		}
	}

	state, err := cache.Commit()
	require.NoError(err)
	want := reference.commit()
	require.Equal(want, state)

	reopened, err := NewStore(db, address, 10)
	require.NoError(err)
	require.Equal(want, reopened.Root())
}
