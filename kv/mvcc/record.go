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

// Package mvcc holds the decoded shapes of the write and lock column family
// records the scan core consumes, along with the isolation-level lock check.
// Encoding/decoding of the real on-disk (protobuf) formats is out of scope;
// this package keeps a minimal wire format of its own, just enough for the
// scan core and its tests.
package mvcc

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinykv-scan/kv/txnerr"
)

// WriteKind is the kind of a write record. Only Put and Delete terminate
// version resolution; Lock and Rollback are skipped over.
type WriteKind byte

const (
	WriteKindPut WriteKind = iota
	WriteKindDelete
	WriteKindLock
	WriteKindRollback
)

// Write is a decoded write-CF record.
type Write struct {
	Kind       WriteKind
	StartTS    uint64
	ShortValue []byte
}

// ToBytes serializes w to this package's internal wire format.
func (w *Write) ToBytes() []byte {
	buf := make([]byte, 0, 10+len(w.ShortValue))
	buf = append(buf, byte(w.Kind))
	buf = appendUvarint(buf, w.StartTS)
	if w.ShortValue == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = appendUvarint(buf, uint64(len(w.ShortValue)))
	return append(buf, w.ShortValue...)
}

// ParseWrite decodes a write-CF record.
func ParseWrite(data []byte) (*Write, error) {
	if len(data) < 2 {
		return nil, errors.Errorf("mvcc: write record too short: %q", data)
	}
	kind := WriteKind(data[0])
	rest := data[1:]
	startTS, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(rest) < 1 {
		return nil, errors.Errorf("mvcc: write record missing short-value marker")
	}
	hasValue := rest[0] == 1
	rest = rest[1:]
	w := &Write{Kind: kind, StartTS: startTS}
	if !hasValue {
		return w, nil
	}
	n, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if uint64(len(rest)) < n {
		return nil, errors.Errorf("mvcc: write record short value truncated")
	}
	w.ShortValue = append([]byte(nil), rest[:n]...)
	return w, nil
}

// Lock is a decoded lock-CF record.
type Lock struct {
	Primary    []byte
	StartTS    uint64
	TTL        uint64
	Kind       WriteKind
	ShortValue []byte
}

// ToBytes serializes l to this package's internal wire format.
func (l *Lock) ToBytes() []byte {
	buf := make([]byte, 0, 20+len(l.Primary)+len(l.ShortValue))
	buf = append(buf, byte(l.Kind))
	buf = appendUvarint(buf, l.StartTS)
	buf = appendUvarint(buf, l.TTL)
	buf = appendUvarint(buf, uint64(len(l.Primary)))
	buf = append(buf, l.Primary...)
	if l.ShortValue == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	buf = appendUvarint(buf, uint64(len(l.ShortValue)))
	return append(buf, l.ShortValue...)
}

// ParseLock decodes a lock-CF record.
func ParseLock(data []byte) (*Lock, error) {
	if len(data) < 1 {
		return nil, errors.Errorf("mvcc: lock record too short: %q", data)
	}
	kind := WriteKind(data[0])
	rest := data[1:]

	startTS, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ttl, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	primaryLen, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if uint64(len(rest)) < primaryLen {
		return nil, errors.Errorf("mvcc: lock record primary truncated")
	}
	primary := append([]byte(nil), rest[:primaryLen]...)
	rest = rest[primaryLen:]

	l := &Lock{Primary: primary, StartTS: startTS, TTL: ttl, Kind: kind}
	if len(rest) < 1 {
		return nil, errors.Errorf("mvcc: lock record missing short-value marker")
	}
	hasValue := rest[0] == 1
	rest = rest[1:]
	if !hasValue {
		return l, nil
	}
	n, rest, err := readUvarint(rest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if uint64(len(rest)) < n {
		return nil, errors.Errorf("mvcc: lock record short value truncated")
	}
	l.ShortValue = append([]byte(nil), rest[:n]...)
	return l, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, errors.Errorf("mvcc: malformed varint")
	}
	return v, b[n:], nil
}

// IsolationLevel controls whether the scanner consults locks. Named after
// TiDB's kv.IsoLevel.
type IsolationLevel int

const (
	// SI is snapshot isolation: locks are checked and may block or error a read.
	SI IsolationLevel = iota
	// RC is read committed: locks are ignored entirely.
	RC
)

// MaxTS is the sentinel timestamp used by readers that want the most recent
// committed value regardless of ts, e.g. reading a transaction's own primary.
const MaxTS = math.MaxUint64

// CheckLockOutcome distinguishes the three results check_lock can produce.
type CheckLockOutcome int

const (
	// NotLocked means the lock does not affect this read.
	NotLocked CheckLockOutcome = iota
	// Locked means the read must fail for this key with a recoverable error.
	Locked
	// Ignored means the lock is bypassed and the read should use IgnoredTS instead.
	Ignored
)

// CheckLockResult is the outcome of CheckLock.
type CheckLockResult struct {
	Outcome   CheckLockOutcome
	Err       error
	IgnoredTS uint64
}

// CheckLock decides whether the lock on userKey conflicts with a read at ts,
// under snapshot isolation. A lock-only record never blocks a read. A lock
// started strictly after ts is invisible to this snapshot. A read at MaxTS
// for the lock's own primary key is allowed to see its own uncommitted write.
// Anything else is a conflict.
func CheckLock(userKey []byte, ts uint64, lock *Lock) CheckLockResult {
	if lock.Kind == WriteKindLock {
		return CheckLockResult{Outcome: NotLocked}
	}
	if lock.StartTS > ts {
		return CheckLockResult{Outcome: NotLocked}
	}
	if ts == MaxTS && bytes.Equal(userKey, lock.Primary) {
		return CheckLockResult{Outcome: Ignored, IgnoredTS: lock.StartTS - 1}
	}
	return CheckLockResult{
		Outcome: Locked,
		Err: &txnerr.ErrKeyIsLocked{
			Key:     append([]byte(nil), userKey...),
			Primary: lock.Primary,
			StartTS: lock.StartTS,
			TTL:     lock.TTL,
		},
	}
}
