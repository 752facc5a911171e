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
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"golang.org/x/exp/maps"
)

// Store maps page indices of a single contract to page contents persisted in
// a key-value store. Pages are stored Snappy-compressed under
// PagePrefix ‖ H(address ‖ index).
//
// Next to the pages, the store maintains a table of the hashes of all
// non-zero pages of the contract. The table is updated in the same atomic
// write as the pages and is the basis of the contract's state root.
type Store struct {
	kv       kv.KeyValueStore
	address  common.Address
	maxPages uint32
	table    map[Index]Hash // < hashes of all non-zero pages
}

type tableEntry struct {
	Index uint32
	Hash  common.Hash
}

// NewStore opens the page store of the given contract.
func NewStore(store kv.KeyValueStore, address common.Address, maxPages uint32) (*Store, error) {
	table, err := loadTable(store, address)
	if err != nil {
		return nil, err
	}
	return &Store{
		kv:       store,
		address:  address,
		maxPages: maxPages,
		table:    table,
	}, nil
}

func (s *Store) Address() common.Address {
	return s.address
}

func (s *Store) MaxPages() uint32 {
	return s.maxPages
}

func (s *Store) checkRange(idx Index) error {
	if uint32(idx) >= s.maxPages {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, idx, s.maxPages)
	}
	return nil
}

func (s *Store) pageKey(idx Index) []byte {
	key := common.Keccak256(s.address[:], idx.bytes())
	return kv.Key(kv.PagePrefix, key[:])
}

// Read returns the bytes previously written for the given page. The boolean
// result is false if the page has never been written.
func (s *Store) Read(idx Index) ([]byte, bool, error) {
	if err := s.checkRange(idx); err != nil {
		return nil, false, err
	}
	compressed, err := s.kv.Get(s.pageKey(idx))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode page %d: %w", idx, err)
	}
	if len(data) != Size {
		return nil, false, fmt.Errorf("%w: page %d has %d bytes", ErrInvalidPageSize, idx, len(data))
	}
	return data, true, nil
}

// ComputeHash computes the hash of the given page content. The hash covers
// the contract address and page index, so equal content stored at different
// places hashes differently.
func (s *Store) ComputeHash(idx Index, data []byte) Hash {
	return common.Keccak256(s.address[:], idx.bytes(), data)
}

// WriteBatch persists the given pages and the updated page table in a single
// atomic write. Hashes of the records are expected to be computed using
// ComputeHash.
func (s *Store) WriteBatch(records []Record) error {
	table := maps.Clone(s.table)
	batch := make([]kv.Pair, 0, len(records)+1)
	for _, record := range records {
		if err := s.checkRange(record.Index); err != nil {
			return err
		}
		if len(record.Data) != Size {
			return fmt.Errorf("%w: page %d has %d bytes", ErrInvalidPageSize, record.Index, len(record.Data))
		}
		batch = append(batch, kv.Pair{
			Key:   s.pageKey(record.Index),
			Value: snappy.Encode(nil, record.Data),
		})
		if isZero(record.Data) {
			delete(table, record.Index)
		} else {
			table[record.Index] = record.Hash
		}
	}
	encoded, err := encodeTable(table)
	if err != nil {
		return err
	}
	batch = append(batch, kv.Pair{
		Key:   kv.Key(kv.PageTablePrefix, s.address[:]),
		Value: encoded,
	})
	if err := s.kv.Put(batch); err != nil {
		return fmt.Errorf("failed to write pages of %v: %w", s.address, err)
	}
	s.table = table
	return nil
}

// Hashes returns the hashes of all non-zero pages of the contract.
func (s *Store) Hashes() map[Index]Hash {
	return maps.Clone(s.table)
}

// Root folds the hashes of all non-zero pages into the contract's state
// root, see ComputeRoot.
func (s *Store) Root() common.State {
	return ComputeRoot(s.table)
}

// ComputeRoot folds the given page hashes in ascending index order:
//
//	state_0 = 0^32
//	state_i = Keccak256(state_{i-1} ‖ BE32(index_i) ‖ hash_i)
//
// An empty table yields the empty state.
func ComputeRoot(hashes map[Index]Hash) common.State {
	indices := maps.Keys(hashes)
	slices.Sort(indices)
	state := common.EmptyState
	for _, idx := range indices {
		hash := hashes[idx]
		state = common.State(common.Keccak256(state[:], idx.bytes(), hash[:]))
	}
	return state
}

func loadTable(store kv.KeyValueStore, address common.Address) (map[Index]Hash, error) {
	table := map[Index]Hash{}
	data, err := store.Get(kv.Key(kv.PageTablePrefix, address[:]))
	if errors.Is(err, kv.ErrNotFound) {
		return table, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []tableEntry
	if err := rlp.DecodeBytes(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode page table of %v: %w", address, err)
	}
	for _, entry := range entries {
		table[Index(entry.Index)] = entry.Hash
	}
	return table, nil
}

func encodeTable(table map[Index]Hash) ([]byte, error) {
	indices := maps.Keys(table)
	slices.Sort(indices)
	entries := make([]tableEntry, 0, len(indices))
	for _, idx := range indices {
		entries = append(entries, tableEntry{Index: uint32(idx), Hash: table[idx]})
	}
	return rlp.EncodeToBytes(entries)
}
