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
	"bytes"
	"sort"

	"github.com/google/btree"

	"github.com/pingcap-incubator/tinykv-scan/kv/engine_util"
)

// memItem orders column-family entries by key for the btree index.
type memItem struct {
	key   []byte
	value []byte
}

func (i *memItem) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*memItem).key) < 0
}

// memCF is a single column family's ordered key space, indexed with a
// google/btree B-tree so MemSnapshot keeps the same "ordered map per CF"
// shape a real engine has, rather than an unordered Go map.
type memCF struct {
	tree *btree.BTree
}

func newMemCF() *memCF {
	return &memCF{tree: btree.New(16)}
}

func (c *memCF) put(key, value []byte) {
	c.tree.ReplaceOrInsert(&memItem{key: key, value: value})
}

func (c *memCF) get(key []byte) ([]byte, bool) {
	item := c.tree.Get(&memItem{key: key})
	if item == nil {
		return nil, false
	}
	return item.(*memItem).value, true
}

// snapshot returns every key/value in ascending order. MemSnapshot cursors
// are built over this immutable slice, giving them the same
// point-in-time-consistent view a real snapshot read would have.
func (c *memCF) snapshot() (keys, values [][]byte) {
	c.tree.Ascend(func(item btree.Item) bool {
		mi := item.(*memItem)
		keys = append(keys, mi.key)
		values = append(values, mi.value)
		return true
	})
	return keys, values
}

// MemSnapshot is an in-memory, multi-column-family Snapshot used by the scan
// core's test suite and by the cmd/scan demo when no -db directory is given.
// It exists because
// the underlying engine is explicitly out of scope for the core (spec.md
// §1); only the Cursor contract matters, and this is the cheapest faithful
// implementation of that contract.
type MemSnapshot struct {
	cfs map[string]*memCF
}

// NewMemSnapshot returns an empty snapshot.
func NewMemSnapshot() *MemSnapshot {
	return &MemSnapshot{cfs: make(map[string]*memCF)}
}

// Put inserts or overwrites a single column family entry. Intended for test
// and demo setup, not for use while a scan is in flight.
func (s *MemSnapshot) Put(cf string, key, value []byte) {
	c, ok := s.cfs[cf]
	if !ok {
		c = newMemCF()
		s.cfs[cf] = c
	}
	c.put(key, value)
}

func (s *MemSnapshot) IterCF(cf string, fillCache bool, lower, upper []byte) (engine_util.Cursor, error) {
	c, ok := s.cfs[cf]
	if !ok {
		return newMemCursor(nil, nil, upper), nil
	}
	keys, values := c.snapshot()
	return newMemCursor(keys, values, upper), nil
}

func (s *MemSnapshot) GetCF(cf string, key []byte) ([]byte, error) {
	c, ok := s.cfs[cf]
	if !ok {
		return nil, nil
	}
	v, ok := c.get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *MemSnapshot) Close() {}

// memCursor is an engine_util.Cursor over a frozen, sorted key/value slice.
// idx starts at -1: an unseeked cursor is never valid, matching a real
// storage engine's iterator before its first Seek/Rewind.
type memCursor struct {
	keys   [][]byte
	values [][]byte
	idx    int
	upper  []byte
}

func newMemCursor(keys, values [][]byte, upper []byte) *memCursor {
	return &memCursor{keys: keys, values: values, idx: -1, upper: upper}
}

func (c *memCursor) Seek(key []byte, stats *engine_util.CFStatistics) (bool, error) {
	stats.Seek++
	c.idx = sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], key) >= 0 })
	return c.Valid(), nil
}

func (c *memCursor) InternalSeek(key []byte, stats *engine_util.CFStatistics) (bool, error) {
	c.idx = sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], key) >= 0 })
	return c.Valid(), nil
}

func (c *memCursor) Next(stats *engine_util.CFStatistics) {
	stats.Next++
	c.idx++
}

func (c *memCursor) Valid() bool {
	if c.idx < 0 || c.idx >= len(c.keys) {
		return false
	}
	if c.upper == nil {
		return true
	}
	return bytes.Compare(c.keys[c.idx], c.upper) < 0
}

func (c *memCursor) Key(stats *engine_util.CFStatistics) []byte {
	return c.keys[c.idx]
}

func (c *memCursor) Value(stats *engine_util.CFStatistics) ([]byte, error) {
	return c.values[c.idx], nil
}

func (c *memCursor) Close() {}
