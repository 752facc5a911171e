// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package kv

import (
	"errors"

	"github.com/pbnjay/memory"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const (
	minCacheSize = 8 << 20
	maxCacheSize = 512 << 20
)

// LevelDbConfig configures a LevelDB backed store.
type LevelDbConfig struct {
	CacheSize int  // < block cache size in bytes, 0 selects a default
	Sync      bool // < fsync on every batch
}

// DefaultCacheSize derives a block cache size from the physical memory of
// the host, bounded to [8 MiB, 512 MiB].
func DefaultCacheSize() int {
	size := memory.TotalMemory() / 64
	if size < minCacheSize {
		return minCacheSize
	}
	if size > maxCacheSize {
		return maxCacheSize
	}
	return int(size)
}

// levelDbStore implements KeyValueStore on top of LevelDB.
type levelDbStore struct {
	db   *leveldb.DB
	sync bool
}

// OpenLevelDb opens, or creates, a LevelDB store in the given directory.
func OpenLevelDb(path string, config LevelDbConfig) (KeyValueStore, error) {
	db, err := leveldb.OpenFile(path, levelDbOptions(config))
	if err != nil {
		return nil, err
	}
	return &levelDbStore{db: db, sync: config.Sync}, nil
}

// NewLevelDbInMemory creates a LevelDB store kept entirely in memory.
func NewLevelDbInMemory() (KeyValueStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &levelDbStore{db: db}, nil
}

func levelDbOptions(config LevelDbConfig) *opt.Options {
	cacheSize := config.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize()
	}
	return &opt.Options{
		BlockCacheCapacity: cacheSize,
	}
}

func (s *levelDbStore) Get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, &opt.ReadOptions{})
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return nil, ErrClosed
	}
	return data, err
}

func (s *levelDbStore) Put(batch []Pair) error {
	b := new(leveldb.Batch)
	for _, p := range batch {
		b.Put(p.Key, p.Value)
	}
	err := s.db.Write(b, &opt.WriteOptions{Sync: s.sync})
	if errors.Is(err, leveldb.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (s *levelDbStore) Close() error {
	return s.db.Close()
}
