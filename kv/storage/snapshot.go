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

// Package storage adapts real and in-memory engines to the Snapshot
// contract the scan core builds cursors from. The underlying
// snapshot/iterator engine itself is an external collaborator (spec.md §1);
// this package owns only the narrow seam the scan core needs.
package storage

import "github.com/pingcap-incubator/tinykv-scan/kv/engine_util"

// Snapshot can spawn a bounded cursor over a named column family with a
// cache-fill hint, per spec.md §6's "Snapshot contract consumed".
type Snapshot interface {
	// IterCF builds a cursor over cf, bounded above by upper (exclusive).
	// Either bound may be nil for unbounded. The implementations in this
	// package do not enforce lower: a Seek to a key below lower can land on
	// keys before it. fillCache hints whether reads through the cursor
	// should warm the engine's block cache.
	IterCF(cf string, fillCache bool, lower, upper []byte) (engine_util.Cursor, error)
	// GetCF performs a direct point lookup in cf, bypassing cursors.
	GetCF(cf string, key []byte) ([]byte, error)
	// Close releases resources held by the snapshot.
	Close()
}

// CursorBuilder mirrors the reference implementation's CursorBuilder:
// accumulate options, then Build. Kept distinct from calling
// Snapshot.IterCF directly because it reads as the familiar
// `CursorBuilder::new(...).range(...).fill_cache(...).build()` chain.
type CursorBuilder struct {
	snapshot  Snapshot
	cf        string
	lower     []byte
	upper     []byte
	fillCache bool
}

// NewCursorBuilder starts a CursorBuilder for cf over snapshot. fill_cache
// defaults to true, matching the scan core's own builder default.
func NewCursorBuilder(snapshot Snapshot, cf string) *CursorBuilder {
	return &CursorBuilder{snapshot: snapshot, cf: cf, fillCache: true}
}

// Range sets the [lower, upper) bounds passed to Snapshot.IterCF. Either may
// be nil.
func (b *CursorBuilder) Range(lower, upper []byte) *CursorBuilder {
	b.lower = lower
	b.upper = upper
	return b
}

// FillCache sets the cache-fill hint.
func (b *CursorBuilder) FillCache(fillCache bool) *CursorBuilder {
	b.fillCache = fillCache
	return b
}

// Build constructs the cursor.
func (b *CursorBuilder) Build() (engine_util.Cursor, error) {
	return b.snapshot.IterCF(b.cf, b.fillCache, b.lower, b.upper)
}
