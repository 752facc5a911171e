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
	"testing"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestStore(t *testing.T, db kv.KeyValueStore, addr common.Address) *Store {
	t.Helper()
	store, err := NewStore(db, addr, 10)
	require.NoError(t, err)
	return store
}

func pageWith(values map[int]byte) []byte {
	data := ZeroPage()
	for pos, value := range values {
		data[pos] = value
	}
	return data
}

func record(store *Store, idx Index, data []byte) Record {
	return Record{Index: idx, Hash: store.ComputeHash(idx, data), Data: data}
}

func TestStore_ReadOfMissingPageReportsAbsence(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	data, found, err := store.Read(3)
	require.NoError(err)
	require.False(found)
	require.Nil(data)
}

func TestStore_WrittenPagesCanBeReadBack(t *testing.T) {
	require := require.New(t)
	db := kv.NewMemory()
	store := newTestStore(t, db, common.Address{1})

	page := pageWith(map[int]byte{0: 1, 4095: 2})
	require.NoError(store.WriteBatch([]Record{record(store, 2, page)}))

	data, found, err := store.Read(2)
	require.NoError(err)
	require.True(found)
	require.Equal(page, data)

	// A fresh store over the same key-value store sees the page.
	reopened := newTestStore(t, db, common.Address{1})
	data, found, err = reopened.Read(2)
	require.NoError(err)
	require.True(found)
	require.Equal(page, data)
	require.Equal(store.Root(), reopened.Root())
}

func TestStore_PagesOfDifferentContractsDoNotCollide(t *testing.T) {
	require := require.New(t)
	db := kv.NewMemory()
	store1 := newTestStore(t, db, common.Address{1})
	store2 := newTestStore(t, db, common.Address{2})

	require.NoError(store1.WriteBatch([]Record{record(store1, 0, pageWith(map[int]byte{0: 1}))}))

	_, found, err := store2.Read(0)
	require.NoError(err)
	require.False(found)
	require.Equal(common.EmptyState, store2.Root())
}

func TestStore_IndicesBeyondLimitAreOutOfRange(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})

	_, _, err := store.Read(10)
	require.ErrorIs(err, ErrOutOfRange)

	err = store.WriteBatch([]Record{record(store, 10, ZeroPage())})
	require.ErrorIs(err, ErrOutOfRange)
}

func TestStore_WriteBatchRejectsInvalidPageSizes(t *testing.T) {
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	err := store.WriteBatch([]Record{{Index: 0, Data: []byte{1, 2, 3}}})
	require.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestStore_HashDependsOnAddressIndexAndContent(t *testing.T) {
	db := kv.NewMemory()
	store1 := newTestStore(t, db, common.Address{1})
	store2 := newTestStore(t, db, common.Address{2})
	page := pageWith(map[int]byte{7: 7})

	hashes := map[Hash]struct{}{
		store1.ComputeHash(0, page):       {},
		store1.ComputeHash(1, page):       {},
		store2.ComputeHash(0, page):       {},
		store1.ComputeHash(0, ZeroPage()): {},
	}
	require.Len(t, hashes, 4)
	require.Equal(t, store1.ComputeHash(0, page), store1.ComputeHash(0, pageWith(map[int]byte{7: 7})))
}

func TestStore_RootIsFoldOfNonZeroPages(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	require.Equal(common.EmptyState, store.Root())

	page1 := pageWith(map[int]byte{0: 1})
	page5 := pageWith(map[int]byte{0: 5})
	require.NoError(store.WriteBatch([]Record{record(store, 5, page5), record(store, 1, page1)}))

	h1 := store.ComputeHash(1, page1)
	h5 := store.ComputeHash(5, page5)
	state := common.EmptyState
	state = common.State(common.Keccak256(state[:], []byte{0, 0, 0, 1}, h1[:]))
	state = common.State(common.Keccak256(state[:], []byte{0, 0, 0, 5}, h5[:]))
	require.Equal(state, store.Root())
	require.Equal(map[Index]Hash{1: h1, 5: h5}, store.Hashes())
}

func TestStore_ZeroPagesDoNotContributeToRoot(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})

	page := pageWith(map[int]byte{0: 1})
	require.NoError(store.WriteBatch([]Record{record(store, 1, page)}))
	require.NotEqual(common.EmptyState, store.Root())

	require.NoError(store.WriteBatch([]Record{record(store, 1, ZeroPage())}))
	require.Equal(common.EmptyState, store.Root())
}

func TestStore_WriteBatchIssuesSingleAtomicPut(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := kv.NewMockKeyValueStore(ctrl)
	db.EXPECT().Get(gomock.Any()).Return(nil, kv.ErrNotFound)
	db.EXPECT().Put(gomock.Any()).DoAndReturn(func(batch []kv.Pair) error {
		// two pages and the page table
		require.Len(t, batch, 3)
		return nil
	})

	store := newTestStore(t, db, common.Address{1})
	require.NoError(t, store.WriteBatch([]Record{
		record(store, 0, pageWith(map[int]byte{0: 1})),
		record(store, 1, pageWith(map[int]byte{0: 2})),
	}))
}

func TestStore_FailedWriteLeavesTableUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := kv.NewMockKeyValueStore(ctrl)
	injected := errors.New("injected")
	db.EXPECT().Get(gomock.Any()).Return(nil, kv.ErrNotFound)
	db.EXPECT().Put(gomock.Any()).Return(injected)

	store := newTestStore(t, db, common.Address{1})
	err := store.WriteBatch([]Record{record(store, 0, pageWith(map[int]byte{0: 1}))})
	require.ErrorIs(t, err, injected)
	require.Equal(t, common.EmptyState, store.Root())
}

func TestStore_CorruptedPageTableIsReported(t *testing.T) {
	db := kv.NewMemory()
	addr := common.Address{1}
	require.NoError(t, db.Put([]kv.Pair{{Key: kv.Key(kv.PageTablePrefix, addr[:]), Value: []byte{0xff}}}))
	_, err := NewStore(db, addr, 10)
	require.Error(t, err)
}

func TestComputeRoot_IsIndependentOfInsertionOrder(t *testing.T) {
	a := map[Index]Hash{}
	b := map[Index]Hash{}
	for i := range 20 {
		a[Index(i)] = Hash{byte(i)}
	}
	for i := 19; i >= 0; i-- {
		b[Index(i)] = Hash{byte(i)}
	}
	require.Equal(t, ComputeRoot(a), ComputeRoot(b))
}

func TestHashRecords_ParallelHashingMatchesSequential(t *testing.T) {
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	store.maxPages = 100
	records := make([]Record, 64)
	for i := range records {
		records[i] = Record{Index: Index(i), Data: pageWith(map[int]byte{i: byte(i + 1)})}
	}
	for _, workers := range []int{0, 1, 8} {
		hashRecords(store, records, workers)
		for i := range records {
			require.Equal(t, store.ComputeHash(records[i].Index, records[i].Data), records[i].Hash, "workers %d", workers)
			records[i].Hash = Hash{}
		}
	}
}
