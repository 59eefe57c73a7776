// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"github.com/coocood/badger"

	"github.com/pingcap-incubator/tinykv-scan/kv/engine_util"
)

// BadgerSnapshot wraps a badger read transaction over the whole database;
// it is not scoped to a region.
type BadgerSnapshot struct {
	txn *badger.Txn
}

// NewBadgerSnapshot wraps txn as a Snapshot. The caller retains ownership of
// txn's lifetime beyond Close, which only discards it.
func NewBadgerSnapshot(txn *badger.Txn) *BadgerSnapshot {
	return &BadgerSnapshot{txn: txn}
}

// IterCF builds a cursor over cf. lower is accepted for interface symmetry
// with the [lower, upper) contract but left unused here: the scan core does
// its own initial Seek(lower) on first use (spec.md §4.2), so pre-seeking at
// construction would only cost a redundant seek.
func (s *BadgerSnapshot) IterCF(cf string, fillCache bool, lower, upper []byte) (engine_util.Cursor, error) {
	return engine_util.NewBadgerCursor(s.txn, cf, fillCache, upper), nil
}

func (s *BadgerSnapshot) GetCF(cf string, key []byte) ([]byte, error) {
	full := append(append([]byte(cf), '_'), key...)
	item, err := s.txn.Get(full)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.Value()
}

func (s *BadgerSnapshot) Close() {
	s.txn.Discard()
}
