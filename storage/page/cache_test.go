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
	"testing"

	"github.com/spacemeshos/svm/common"
	"github.com/spacemeshos/svm/database/kv"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCache_NeverStoredPagesReadAsZeros(t *testing.T) {
	require := require.New(t)
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)

	data, err := cache.Read(4)
	require.NoError(err)
	require.Equal(ZeroPage(), data)

	empty, err := cache.IsEmpty(4)
	require.NoError(err)
	require.True(empty)
}

func TestCache_WritesAreVisibleBeforeCommit(t *testing.T) {
	require := require.New(t)
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)

	page := pageWith(map[int]byte{10: 1})
	require.NoError(cache.Write(1, page))
	require.True(cache.IsDirty(1))

	data, err := cache.Read(1)
	require.NoError(err)
	require.Equal(page, data)

	empty, err := cache.IsEmpty(1)
	require.NoError(err)
	require.False(empty)
}

func TestCache_ReadReturnsCopies(t *testing.T) {
	require := require.New(t)
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)

	data, err := cache.Read(0)
	require.NoError(err)
	data[0] = 1

	data, err = cache.Read(0)
	require.NoError(err)
	require.Equal(ZeroPage(), data)
}

func TestCache_WriteRequiresFullPage(t *testing.T) {
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)
	require.ErrorIs(t, cache.Write(0, []byte{1}), ErrInvalidPageSize)
	require.ErrorIs(t, cache.Write(10, ZeroPage()), ErrOutOfRange)
}

func TestCache_CommitReturnsDirtyPagesInAscendingOrder(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	cache := NewCache(store, 0)

	for _, idx := range []Index{7, 2, 5} {
		require.NoError(cache.Write(idx, pageWith(map[int]byte{0: byte(idx)})))
	}
	records, err := cache.Commit()
	require.NoError(err)
	require.Len(records, 3)
	for i, idx := range []Index{2, 5, 7} {
		require.Equal(idx, records[i].Index)
		require.Equal(store.ComputeHash(idx, records[i].Data), records[i].Hash)
		require.False(cache.IsDirty(idx))
	}

	data, found, err := store.Read(5)
	require.NoError(err)
	require.True(found)
	require.Equal(pageWith(map[int]byte{0: 5}), data)
}

func TestCache_CommitIssuesExactlyOneWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := kv.NewMockKeyValueStore(ctrl)
	db.EXPECT().Get(gomock.Any()).Return(nil, kv.ErrNotFound).AnyTimes()
	db.EXPECT().Put(gomock.Any()).Return(nil).Times(1)

	cache := NewCache(newTestStore(t, db, common.Address{1}), 0)
	require.NoError(t, cache.Write(1, pageWith(map[int]byte{0: 1})))
	require.NoError(t, cache.Write(2, pageWith(map[int]byte{0: 2})))
	_, err := cache.Commit()
	require.NoError(t, err)
}

func TestCache_CleanPagesAreNotRewritten(t *testing.T) {
	require := require.New(t)
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)

	require.NoError(cache.Write(1, pageWith(map[int]byte{0: 1})))
	records, err := cache.Commit()
	require.NoError(err)
	require.Len(records, 1)

	_, err = cache.Read(1)
	require.NoError(err)
	records, err = cache.Commit()
	require.NoError(err)
	require.Empty(records)
}

func TestCache_DirtyPagesAreNeverEvicted(t *testing.T) {
	require := require.New(t)
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 2)

	require.NoError(cache.Write(0, pageWith(map[int]byte{0: 1})))
	require.NoError(cache.Write(1, pageWith(map[int]byte{0: 2})))

	// Reading many clean pages must not push out dirty ones.
	for i := Index(2); i < 10; i++ {
		_, err := cache.Read(i)
		require.NoError(err)
	}
	data, err := cache.Read(0)
	require.NoError(err)
	require.Equal(pageWith(map[int]byte{0: 1}), data)

	// Overwriting a dirty page is fine, a new one fails closed.
	require.NoError(cache.Write(1, pageWith(map[int]byte{0: 3})))
	require.ErrorIs(cache.Write(2, ZeroPage()), ErrCacheFull)

	records, err := cache.Commit()
	require.NoError(err)
	require.Len(records, 2)
	require.NoError(cache.Write(2, ZeroPage()))
}

func TestCache_ClearDirtyDiscardsPendingWrites(t *testing.T) {
	require := require.New(t)
	store := newTestStore(t, kv.NewMemory(), common.Address{1})
	cache := NewCache(store, 0)

	require.NoError(cache.Write(1, pageWith(map[int]byte{0: 1})))
	cache.ClearDirty()

	data, err := cache.Read(1)
	require.NoError(err)
	require.Equal(ZeroPage(), data)

	records, err := cache.Commit()
	require.NoError(err)
	require.Empty(records)
	require.Equal(common.EmptyState, store.Root())
}

func TestCache_HashesOnCallerByDefault(t *testing.T) {
	cache := NewCache(newTestStore(t, kv.NewMemory(), common.Address{1}), 0)
	require.Equal(t, 0, cache.workers)
}

func TestCache_HashWorkersDoNotAffectCommittedRoot(t *testing.T) {
	require := require.New(t)
	roots := []common.State{}
	for _, workers := range []int{0, 4} {
		store := newTestStore(t, kv.NewMemory(), common.Address{1})
		store.maxPages = 64
		cache := NewCache(store, 0)
		cache.SetHashWorkers(workers)
		for i := range 40 {
			require.NoError(cache.Write(Index(i), pageWith(map[int]byte{i: byte(i + 1)})))
		}
		records, err := cache.Commit()
		require.NoError(err)
		require.Len(records, 40)
		roots = append(roots, store.Root())
	}
	require.Equal(roots[0], roots[1])
}
