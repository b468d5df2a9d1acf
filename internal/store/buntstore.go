// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// BuntMemo is a Memo backed by a single buntdb database file: an
// embedded, ordered key/value store with its own fsync'd WAL, the same
// role an external KV server would play without requiring one to be
// stood up. One BuntMemo is meant to back every Root a process serves;
// RUVKey/ReplicaConfigKey/CleanedRIDsKey already namespace by root.
type BuntMemo struct {
	db *buntdb.DB
}

// OpenBuntMemo opens (creating if necessary) a buntdb file at path.
// Pass ":memory:" for a process-local, non-persistent store, useful in
// tests.
func OpenBuntMemo(path string) (*BuntMemo, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening buntdb store")
	}
	return &BuntMemo{db: db}, nil
}

// Close releases the underlying database file.
func (m *BuntMemo) Close() error {
	return errors.Wrap(m.db.Close(), "closing buntdb store")
}

// Get implements Memo.
func (m *BuntMemo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value = []byte(v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "buntdb get")
	}
	return value, nil
}

// Put implements Memo.
func (m *BuntMemo) Put(ctx context.Context, key string, value []byte) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(value), nil)
		return err
	})
	return errors.Wrap(err, "buntdb put")
}

var _ Memo = (*BuntMemo)(nil)
