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

package engine_util

import (
	"bytes"

	"github.com/coocood/badger"
)

// BadgerCursor implements Cursor over a single column family of a badger
// transaction: each CF is a logical key prefix (cf + "_") within one
// physical badger keyspace.
type BadgerCursor struct {
	iter  *badger.Iterator
	cf    string
	upper []byte // encoded upper bound, exclusive, without the cf prefix; nil means unbounded
}

// NewBadgerCursor builds a cursor over cf in txn, bounded above by upper
// (exclusive, may be nil).
func NewBadgerCursor(txn *badger.Txn, cf string, fillCache bool, upper []byte) *BadgerCursor {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = fillCache
	return &BadgerCursor{
		iter:  txn.NewIterator(opts),
		cf:    cf,
		upper: upper,
	}
}

func (c *BadgerCursor) prefixed(key []byte) []byte {
	full := make([]byte, 0, len(c.cf)+1+len(key))
	full = append(full, c.cf...)
	full = append(full, '_')
	full = append(full, key...)
	return full
}

func (c *BadgerCursor) Seek(key []byte, stats *CFStatistics) (bool, error) {
	stats.Seek++
	c.iter.Seek(c.prefixed(key))
	return c.Valid(), nil
}

func (c *BadgerCursor) InternalSeek(key []byte, stats *CFStatistics) (bool, error) {
	c.iter.Seek(c.prefixed(key))
	return c.Valid(), nil
}

func (c *BadgerCursor) Next(stats *CFStatistics) {
	stats.Next++
	c.iter.Next()
}

func (c *BadgerCursor) Valid() bool {
	if !c.iter.ValidForPrefix([]byte(c.cf + "_")) {
		return false
	}
	if c.upper == nil {
		return true
	}
	return bytes.Compare(c.stripPrefix(c.iter.Item().Key()), c.upper) < 0
}

func (c *BadgerCursor) stripPrefix(key []byte) []byte {
	return key[len(c.cf)+1:]
}

func (c *BadgerCursor) Key(stats *CFStatistics) []byte {
	return c.stripPrefix(c.iter.Item().Key())
}

func (c *BadgerCursor) Value(stats *CFStatistics) ([]byte, error) {
	return c.iter.Item().Value()
}

func (c *BadgerCursor) Close() {
	c.iter.Close()
}
