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
	"fmt"
	"slices"

	"github.com/0xsoniclabs/tracy"
	"github.com/ethereum/go-ethereum/common/lru"
	"golang.org/x/exp/maps"
)

// Cache is a write-back cache in front of a page Store. A page is either
// empty (never touched), cached (loaded and clean) or dirty (written since
// the last commit).
//
// Clean pages are kept in an LRU bounded by the cache capacity. Dirty pages
// are never evicted; once the capacity is exhausted by dirty pages, further
// writes to new pages fail with ErrCacheFull.
type Cache struct {
	store    *Store
	capacity int
	clean    lru.BasicLRU[Index, cachedPage]
	dirty    map[Index][]byte
	workers  int // < goroutines hashing on commit, 0 or 1 hashes on the caller
}

type cachedPage struct {
	data   []byte
	stored bool // < false if the page was absent in the store
}

// NewCache creates a cache over the given store holding up to capacity
// pages. A non-positive capacity selects the store's page limit.
func NewCache(store *Store, capacity int) *Cache {
	if capacity <= 0 {
		capacity = int(store.MaxPages())
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		store:    store,
		capacity: capacity,
		clean:    lru.NewBasicLRU[Index, cachedPage](capacity),
		dirty:    map[Index][]byte{},
	}
}

// SetHashWorkers sets the number of goroutines hashing dirty pages on
// commit. By default, pages are hashed on the committing goroutine.
func (c *Cache) SetHashWorkers(workers int) {
	c.workers = workers
}

func (c *Cache) Store() *Store {
	return c.store
}

func (c *Cache) load(idx Index) (cachedPage, error) {
	if data, found := c.dirty[idx]; found {
		return cachedPage{data: data, stored: true}, nil
	}
	if page, found := c.clean.Get(idx); found {
		return page, nil
	}
	data, found, err := c.store.Read(idx)
	if err != nil {
		return cachedPage{}, err
	}
	if !found {
		data = ZeroPage()
	}
	page := cachedPage{data: data, stored: found}
	c.clean.Add(idx, page)
	return page, nil
}

// Read returns a copy of the current content of the given page. Pages never
// stored read as zeros.
func (c *Cache) Read(idx Index) ([]byte, error) {
	page, err := c.load(idx)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(page.data), nil
}

// IsEmpty reports whether the page has neither been stored nor written.
func (c *Cache) IsEmpty(idx Index) (bool, error) {
	page, err := c.load(idx)
	if err != nil {
		return false, err
	}
	return !page.stored, nil
}

// Write replaces the full content of the given page and marks it dirty.
func (c *Cache) Write(idx Index, data []byte) error {
	if err := c.store.checkRange(idx); err != nil {
		return err
	}
	if len(data) != Size {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidPageSize, len(data))
	}
	if _, found := c.dirty[idx]; !found && len(c.dirty) >= c.capacity {
		return fmt.Errorf("%w: capacity %d", ErrCacheFull, c.capacity)
	}
	c.dirty[idx] = bytes.Clone(data)
	c.clean.Remove(idx)
	return nil
}

// IsDirty reports whether the page has pending writes.
func (c *Cache) IsDirty(idx Index) bool {
	_, found := c.dirty[idx]
	return found
}

// Commit persists all dirty pages with a single batch write to the store and
// returns them in ascending index order. Committed pages become clean. If
// the write fails, pages remain dirty.
func (c *Cache) Commit() ([]Record, error) {
	zone := tracy.ZoneBegin("page::Cache::Commit")
	defer zone.End()

	indices := maps.Keys(c.dirty)
	slices.Sort(indices)
	records := make([]Record, 0, len(indices))
	for _, idx := range indices {
		records = append(records, Record{Index: idx, Data: c.dirty[idx]})
	}
	hashRecords(c.store, records, c.workers)

	if err := c.store.WriteBatch(records); err != nil {
		return nil, err
	}
	for _, record := range records {
		c.clean.Add(record.Index, cachedPage{data: record.Data, stored: true})
	}
	c.dirty = map[Index][]byte{}
	return records, nil
}

// ClearDirty discards all pending writes.
func (c *Cache) ClearDirty() {
	c.dirty = map[Index][]byte{}
}
