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

// Package scanner implements the forward MVCC scan core: given a snapshot
// timestamp, it walks a range of user keys in ascending order, resolving
// each one against the lock and write column families to find the single
// value visible at that timestamp, lazily consulting the default column
// family for values too large to inline.
//
// This is a close port of TiKV's ForwardScanner
// (storage/mvcc/reader/forward_scanner.rs), generalized to whatever
// Snapshot/Cursor implementation the caller supplies.
package scanner

import (
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinykv-scan/kv/codec"
	"github.com/pingcap-incubator/tinykv-scan/kv/engine_util"
	"github.com/pingcap-incubator/tinykv-scan/kv/mvcc"
	"github.com/pingcap-incubator/tinykv-scan/kv/storage"
	"github.com/pingcap-incubator/tinykv-scan/kv/txnerr"
)

// SeekBound is the number of cursor positions the version resolver, the
// value loader and the cursor-advance helper inspect (the first one in
// place, each later one after a Next call) before giving up and issuing a
// Seek. It is the
// only scan-shape tuning constant the wire format depends on.
const SeekBound = 8

// KV is a single result pair returned by ReadNext.
type KV struct {
	UserKey []byte
	Value   []byte
}

// Builder accumulates scan options and produces a ForwardScanner.
type Builder struct {
	snapshot       storage.Snapshot
	ts             uint64
	fillCache      bool
	omitValue      bool
	isolationLevel mvcc.IsolationLevel
	lower          []byte
	upper          []byte
}

// NewBuilder starts a Builder for snapshot at read timestamp ts. fill_cache
// defaults to true, omit_value to false, isolation level to SI.
func NewBuilder(snapshot storage.Snapshot, ts uint64) *Builder {
	return &Builder{
		snapshot:       snapshot,
		ts:             ts,
		fillCache:      true,
		isolationLevel: mvcc.SI,
	}
}

// FillCache sets whether cursor reads should warm the engine's block cache.
func (b *Builder) FillCache(fillCache bool) *Builder {
	b.fillCache = fillCache
	return b
}

// OmitValue, when set, makes the value loader return empty byte slices
// instead of resolving values, for scans that only need keys.
func (b *Builder) OmitValue(omitValue bool) *Builder {
	b.omitValue = omitValue
	return b
}

// IsolationLevel sets SI (the default, locks are checked) or RC (locks are
// ignored).
func (b *Builder) IsolationLevel(level mvcc.IsolationLevel) *Builder {
	b.isolationLevel = level
	return b
}

// Range restricts the scan to raw user keys in [lower, upper). Either bound
// may be nil for unbounded.
func (b *Builder) Range(lower, upper []byte) *Builder {
	if lower != nil {
		b.lower = codec.EncodeBytes(lower)
	}
	if upper != nil {
		b.upper = codec.EncodeBytes(upper)
	}
	return b
}

// Build constructs the ForwardScanner: the lock and write cursors are
// created eagerly, bound to [lower, upper); the default cursor is left
// uncreated until the first out-of-line value is needed.
func (b *Builder) Build() (*ForwardScanner, error) {
	lockCursor, err := storage.NewCursorBuilder(b.snapshot, engine_util.CfLock).
		Range(b.lower, b.upper).
		FillCache(b.fillCache).
		Build()
	if err != nil {
		return nil, errors.Trace(err)
	}

	writeCursor, err := storage.NewCursorBuilder(b.snapshot, engine_util.CfWrite).
		Range(b.lower, b.upper).
		FillCache(b.fillCache).
		Build()
	if err != nil {
		lockCursor.Close()
		return nil, errors.Trace(err)
	}

	return &ForwardScanner{
		snapshot:       b.snapshot,
		fillCache:      b.fillCache,
		omitValue:      b.omitValue,
		isolationLevel: b.isolationLevel,
		lower:          b.lower,
		upper:          b.upper,
		ts:             b.ts,
		lockCursor:     lockCursor,
		writeCursor:    writeCursor,
	}, nil
}

// ForwardScanner walks a range of user keys in ascending order, returning
// for each one the value visible at ts. Build it with Builder; read with
// ReadNext until it returns (nil, nil); then discard it.
type ForwardScanner struct {
	snapshot       storage.Snapshot
	fillCache      bool
	omitValue      bool
	isolationLevel mvcc.IsolationLevel

	// lower and upper are consumed (set to nil) once defaultCursor is
	// created; after that point nothing needs them again.
	lower []byte
	upper []byte

	ts uint64

	lockCursor  engine_util.Cursor
	writeCursor engine_util.Cursor

	// defaultCursor is created lazily, on first out-of-line value lookup.
	defaultCursor engine_util.Cursor

	isStarted bool

	statistics engine_util.Statistics
}

// TakeStatistics swaps out the accumulated statistics for a fresh, zeroed
// instance and returns what had accumulated.
func (s *ForwardScanner) TakeStatistics() engine_util.Statistics {
	stats := s.statistics
	s.statistics = engine_util.Statistics{}
	return stats
}

// Close releases the scanner's cursors. The snapshot itself is owned by the
// caller.
func (s *ForwardScanner) Close() {
	s.lockCursor.Close()
	s.writeCursor.Close()
	if s.defaultCursor != nil {
		s.defaultCursor.Close()
	}
}

// ReadNext returns the next visible (user key, value) pair in ascending
// order, or (nil, nil) once the scan is exhausted. A *txnerr.ErrKeyIsLocked
// error is recoverable: both cursors have already advanced past the
// offending key, so the next ReadNext call continues the scan. Any other
// error is fatal; the scanner should not be used again.
func (s *ForwardScanner) ReadNext() (*KV, error) {
	if !s.isStarted {
		lower := s.lower
		if lower == nil {
			lower = []byte{}
		}
		if _, err := s.writeCursor.Seek(lower, &s.statistics.Write); err != nil {
			return nil, errors.Trace(err)
		}
		if _, err := s.lockCursor.Seek(lower, &s.statistics.Lock); err != nil {
			return nil, errors.Trace(err)
		}
		s.isStarted = true
	}

	for {
		currentUserKey, hasWrite, hasLock := s.selectCurrentUserKey()
		if currentUserKey == nil {
			return nil, nil
		}
		_, rawUserKey, err := codec.DecodeBytes(currentUserKey)
		if err != nil {
			return nil, errors.Trace(err)
		}

		var pendingErr error
		effectiveTS := s.ts
		metNextUserKey := false

		if hasLock {
			if s.isolationLevel == mvcc.SI {
				lockValue, err := s.lockCursor.Value(&s.statistics.Lock)
				if err != nil {
					return nil, errors.Trace(err)
				}
				lock, err := mvcc.ParseLock(lockValue)
				if err != nil {
					return nil, errors.Trace(err)
				}
				result := mvcc.CheckLock(rawUserKey, s.ts, lock)
				switch result.Outcome {
				case mvcc.Locked:
					pendingErr = result.Err
				case mvcc.Ignored:
					effectiveTS = result.IgnoredTS
				case mvcc.NotLocked:
				}
			}
			s.lockCursor.Next(&s.statistics.Lock)
		}

		var value []byte
		var haveValue bool
		if hasWrite {
			if pendingErr == nil {
				v, err := s.get(currentUserKey, effectiveTS, &metNextUserKey)
				if err != nil {
					return nil, err
				}
				if v != nil {
					value, haveValue = v, true
				}
			}
			if !metNextUserKey {
				if err := s.moveWriteCursorToNextUserKey(currentUserKey); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}

		if haveValue {
			return &KV{UserKey: rawUserKey, Value: value}, nil
		}
		if pendingErr != nil {
			return nil, pendingErr
		}
		// Neither a value nor an error: this key was lock-only under RC, or
		// had only Delete/Rollback/Lock history, or no version <=
		// effectiveTS. Continue the loop to the next user key.
	}
}

// selectCurrentUserKey implements spec.md §4.2 step 2: pick
// min(user_key(write_cursor), lock_cursor) as the key to process this
// iteration, and classify whether it has a write and/or a lock. The
// returned key is a fresh copy with 8 bytes of spare capacity so a later
// AppendTS never reallocates.
func (s *ForwardScanner) selectCurrentUserKey() (userKey []byte, hasWrite, hasLock bool) {
	var writeKey []byte
	if s.writeCursor.Valid() {
		writeKey = s.writeCursor.Key(&s.statistics.Write)
	}
	var lockKey []byte
	if s.lockCursor.Valid() {
		lockKey = s.lockCursor.Key(&s.statistics.Lock)
	}

	switch {
	case writeKey == nil && lockKey == nil:
		return nil, false, false
	case writeKey == nil:
		return codec.ReserveForTS(lockKey), false, true
	case lockKey == nil:
		writeUserKey := writeKey[:len(writeKey)-8]
		return codec.ReserveForTS(writeUserKey), true, false
	default:
		writeUserKey := writeKey[:len(writeKey)-8]
		switch {
		case lessBytes(writeUserKey, lockKey):
			return codec.ReserveForTS(writeUserKey), true, false
		case lessBytes(lockKey, writeUserKey):
			return codec.ReserveForTS(lockKey), false, true
		default:
			return codec.ReserveForTS(lockKey), true, true
		}
	}
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// get is the Version Resolver of spec.md §4.3. It requires the write cursor
// to already be positioned at the newest commit of userKey.
func (s *ForwardScanner) get(userKey []byte, ts uint64, metNextUserKey *bool) ([]byte, error) {
	needsSeek := true

	for i := 0; i < SeekBound; i++ {
		if i > 0 {
			s.writeCursor.Next(&s.statistics.Write)
			if !s.writeCursor.Valid() {
				return nil, nil
			}
		}
		currentKey := s.writeCursor.Key(&s.statistics.Write)
		if !codec.UserKeyEqual(currentKey, userKey) {
			*metNextUserKey = true
			return nil, nil
		}
		currentTS, err := codec.DecodeTS(currentKey)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if currentTS <= ts {
			needsSeek = false
			break
		}
	}

	if needsSeek {
		seekKey := codec.AppendTS(codec.ReserveForTS(userKey), ts)
		if _, err := s.writeCursor.Seek(seekKey, &s.statistics.Write); err != nil {
			return nil, errors.Trace(err)
		}
		if !s.writeCursor.Valid() {
			return nil, nil
		}
		currentKey := s.writeCursor.Key(&s.statistics.Write)
		if !codec.UserKeyEqual(currentKey, userKey) {
			*metNextUserKey = true
			return nil, nil
		}
	}

	for {
		writeValue, err := s.writeCursor.Value(&s.statistics.Write)
		if err != nil {
			return nil, errors.Trace(err)
		}
		write, err := mvcc.ParseWrite(writeValue)
		if err != nil {
			return nil, errors.Trace(err)
		}
		s.statistics.Write.Processed++

		switch write.Kind {
		case mvcc.WriteKindPut:
			return s.loadDataByWrite(write, userKey)
		case mvcc.WriteKindDelete:
			return nil, nil
		case mvcc.WriteKindLock, mvcc.WriteKindRollback:
			// fall through to advance past it
		}

		s.writeCursor.Next(&s.statistics.Write)
		if !s.writeCursor.Valid() {
			return nil, nil
		}
		currentKey := s.writeCursor.Key(&s.statistics.Write)
		if !codec.UserKeyEqual(currentKey, userKey) {
			*metNextUserKey = true
			return nil, nil
		}
	}
}

// loadDataByWrite is the Value Loader of spec.md §4.4.
func (s *ForwardScanner) loadDataByWrite(write *mvcc.Write, userKey []byte) ([]byte, error) {
	if s.omitValue {
		return []byte{}, nil
	}
	if write.ShortValue != nil {
		return write.ShortValue, nil
	}
	if err := s.ensureDefaultCursor(); err != nil {
		return nil, errors.Trace(err)
	}
	return s.nearLoad(userKey, write)
}

// nearLoad positions the default cursor exactly on
// append_ts(user_key, write.start_ts) and returns the value stored there,
// first inspecting up to SeekBound positions (SeekBound-1 Next calls) before
// falling back to Seek.
func (s *ForwardScanner) nearLoad(userKey []byte, write *mvcc.Write) ([]byte, error) {
	target := codec.AppendTS(codec.ReserveForTS(userKey), write.StartTS)

	if !s.defaultCursor.Valid() {
		return s.seekDefaultTo(target)
	}

	for i := 0; i < SeekBound; i++ {
		if i > 0 {
			s.defaultCursor.Next(&s.statistics.Default)
		}
		if !s.defaultCursor.Valid() {
			return s.seekDefaultTo(target)
		}
		currentKey := s.defaultCursor.Key(&s.statistics.Default)
		cmp := compareBytes(currentKey, target)
		if cmp == 0 {
			return s.defaultCursor.Value(&s.statistics.Default)
		}
		if cmp > 0 {
			// Stepped past the target without landing on it exactly: the
			// storage engine's own invariants are broken.
			return nil, &txnerr.ErrCorruption{Key: userKey, Detail: "default CF record missing for write"}
		}
	}
	return s.seekDefaultTo(target)
}

func (s *ForwardScanner) seekDefaultTo(target []byte) ([]byte, error) {
	found, err := s.defaultCursor.Seek(target, &s.statistics.Default)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !found {
		return nil, &txnerr.ErrCorruption{Key: target, Detail: "default CF record missing for write"}
	}
	currentKey := s.defaultCursor.Key(&s.statistics.Default)
	if compareBytes(currentKey, target) != 0 {
		return nil, &txnerr.ErrCorruption{Key: target, Detail: "default CF record missing for write"}
	}
	return s.defaultCursor.Value(&s.statistics.Default)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// moveWriteCursorToNextUserKey is the cursor-advance helper of spec.md §4.5.
// After get(), the write cursor may still be on currentUserKey (no desired
// version was found but other versions remain); this guarantees it has
// crossed into the next user key before the next reconciler iteration.
func (s *ForwardScanner) moveWriteCursorToNextUserKey(currentUserKey []byte) error {
	for i := 0; i < SeekBound; i++ {
		if i > 0 {
			s.writeCursor.Next(&s.statistics.Write)
		}
		if !s.writeCursor.Valid() {
			return nil
		}
		currentKey := s.writeCursor.Key(&s.statistics.Write)
		if !codec.UserKeyEqual(currentKey, currentUserKey) {
			return nil
		}
	}

	// Still on the same user key after SeekBound-1 Next calls: internal_seek
	// past it. ts=0 sorts last within a user key (since larger ts sorts
	// first), so this lands strictly beyond currentUserKey's slot.
	target := codec.AppendTS(codec.ReserveForTS(currentUserKey), 0)
	_, err := s.writeCursor.InternalSeek(target, &s.statistics.Write)
	return errors.Trace(err)
}

// ensureDefaultCursor creates the default cursor on first demand. lower and
// upper are moved into it (set to nil on the scanner) since nothing after
// this point needs them again.
func (s *ForwardScanner) ensureDefaultCursor() error {
	if s.defaultCursor != nil {
		return nil
	}
	cursor, err := storage.NewCursorBuilder(s.snapshot, engine_util.CfDefault).
		Range(s.lower, s.upper).
		FillCache(s.fillCache).
		Build()
	if err != nil {
		return errors.Trace(err)
	}
	s.defaultCursor = cursor
	s.lower, s.upper = nil, nil
	return nil
}
