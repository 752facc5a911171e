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
	"cmp"
	"fmt"
	"slices"

	"github.com/0xsoniclabs/tracy"
	"github.com/spacemeshos/svm/common"
	"golang.org/x/exp/maps"
)

// SliceCache provides byte-range access to the pages of a Cache. Written
// slices are kept aside, keyed by their slice index, until they are spliced
// into their pages on Commit.
type SliceCache struct {
	cache     *Cache
	maxSlices uint32
	slices    map[SliceIndex]*slice
	seq       uint64 // < write counter ordering overlapping slices
}

type slice struct {
	layout SliceLayout
	data   []byte
	seq    uint64
}

// NewSliceCache creates a slice cache over the given page cache, accepting
// slice indices below maxSlices.
func NewSliceCache(cache *Cache, maxSlices uint32) *SliceCache {
	return &SliceCache{
		cache:     cache,
		maxSlices: maxSlices,
		slices:    map[SliceIndex]*slice{},
	}
}

func (c *SliceCache) Cache() *Cache {
	return c.cache
}

func (c *SliceCache) check(layout SliceLayout) error {
	if uint32(layout.Slice) >= c.maxSlices {
		return fmt.Errorf("%w: %d >= %d", ErrTooManySlices, layout.Slice, c.maxSlices)
	}
	if err := layout.Check(); err != nil {
		return err
	}
	return c.cache.store.checkRange(layout.Page)
}

// ReadSlice returns the current content of the given slice. Reads observe
// all slices written before on the same page, with later writes taking
// precedence. The boolean result is false if the page has never been stored
// and no slice on it has been written.
func (c *SliceCache) ReadSlice(layout SliceLayout) ([]byte, bool, error) {
	if err := c.check(layout); err != nil {
		return nil, false, err
	}
	pending := c.pendingOf(layout.Page)
	if len(pending) == 0 {
		empty, err := c.cache.IsEmpty(layout.Page)
		if err != nil {
			return nil, false, err
		}
		if empty {
			return nil, false, nil
		}
	}

	data, err := c.cache.Read(layout.Page)
	if err != nil {
		return nil, false, err
	}
	for _, s := range pending {
		copy(data[s.layout.Offset:], s.data)
	}
	return data[layout.Offset:layout.end()], true, nil
}

// WriteSlice records the given bytes for the slice. The data length must
// match the layout length.
func (c *SliceCache) WriteSlice(layout SliceLayout, data []byte) error {
	if err := c.check(layout); err != nil {
		return err
	}
	if uint32(len(data)) != layout.Length {
		return fmt.Errorf("%w: got %d bytes, layout length %d", ErrSliceLength, len(data), layout.Length)
	}
	// A slice index re-used for a different range must not lose the bytes
	// written for the previous range. All pending slices of its page are
	// spliced in write order so older overlapping slices cannot win later.
	if prev, found := c.slices[layout.Slice]; found && prev.layout != layout {
		pending := c.pendingOf(prev.layout.Page)
		if err := c.splice(prev.layout.Page, pending); err != nil {
			return err
		}
		for _, s := range pending {
			delete(c.slices, s.layout.Slice)
		}
	}
	c.seq++
	c.slices[layout.Slice] = &slice{
		layout: layout,
		data:   bytes.Clone(data),
		seq:    c.seq,
	}
	return nil
}

// pendingOf returns the written slices on the given page in write order.
func (c *SliceCache) pendingOf(idx Index) []*slice {
	var res []*slice
	for _, s := range c.slices {
		if s.layout.Page == idx {
			res = append(res, s)
		}
	}
	slices.SortFunc(res, func(a, b *slice) int { return cmp.Compare(a.seq, b.seq) })
	return res
}

func (c *SliceCache) splice(idx Index, pending []*slice) error {
	data, err := c.cache.Read(idx)
	if err != nil {
		return err
	}
	for _, s := range pending {
		copy(data[s.layout.Offset:], s.data)
	}
	return c.cache.Write(idx, data)
}

// Commit splices all written slices into their pages, persists the dirty
// pages and returns the resulting state root of the contract. On error, the
// pending writes are retained and should be discarded by the caller.
func (c *SliceCache) Commit() (common.State, error) {
	zone := tracy.ZoneBegin("page::SliceCache::Commit")
	defer zone.End()

	pages := map[Index]struct{}{}
	for _, s := range c.slices {
		pages[s.layout.Page] = struct{}{}
	}
	indices := maps.Keys(pages)
	slices.Sort(indices)
	for _, idx := range indices {
		if err := c.splice(idx, c.pendingOf(idx)); err != nil {
			return common.State{}, err
		}
	}
	if _, err := c.cache.Commit(); err != nil {
		return common.State{}, err
	}
	c.slices = map[SliceIndex]*slice{}
	return c.cache.store.Root(), nil
}

// Discard drops all pending slice and page writes.
func (c *SliceCache) Discard() {
	c.slices = map[SliceIndex]*slice{}
	c.cache.ClearDirty()
}
