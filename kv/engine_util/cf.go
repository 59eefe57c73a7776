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

// Column family names. These, along with SeekBound, are the only wire-level
// constants the scan core depends on.
const (
	CfDefault = "default"
	CfLock    = "lock"
	CfWrite   = "write"
)

// Cursor is the ordered-iterator contract the scan core consumes. It is
// satisfied by a real storage engine's iterator (see the badger-backed
// implementation in this package) or by a fake used in tests.
type Cursor interface {
	// Seek moves the cursor to the first key >= key. It counts against
	// user-visible seek statistics.
	Seek(key []byte, stats *CFStatistics) (bool, error)
	// InternalSeek behaves like Seek but does not count against
	// user-visible seek statistics; it is used for bookkeeping moves the
	// scanner makes on its own behalf.
	InternalSeek(key []byte, stats *CFStatistics) (bool, error)
	// Next moves the cursor one position forward.
	Next(stats *CFStatistics)
	// Valid reports whether the cursor is positioned on a record.
	Valid() bool
	// Key returns the key the cursor is positioned on. Only valid to call
	// when Valid() is true.
	Key(stats *CFStatistics) []byte
	// Value returns the value the cursor is positioned on. Only valid to
	// call when Valid() is true.
	Value(stats *CFStatistics) ([]byte, error)
	// Close releases resources held by the cursor.
	Close()
}
