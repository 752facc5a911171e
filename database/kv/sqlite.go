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
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteStore implements KeyValueStore using a single SQLite table.
type sqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens, or creates, a SQLite database file at the given path.
func OpenSqlite(path string) (KeyValueStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite supports a single writer only.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS kv (key BLOB PRIMARY KEY, value BLOB NOT NULL)"); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create table: %w", err), db.Close())
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *sqliteStore) Put(batch []Pair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)")
	if err != nil {
		return errors.Join(err, tx.Rollback())
	}
	defer stmt.Close()
	for _, p := range batch {
		value := p.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.Exec(p.Key, value); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
