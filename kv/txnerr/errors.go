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

// Package txnerr holds the scan core's own error kinds. Codec errors and
// cursor I/O errors are not wrapped here; they propagate unchanged and are
// fatal to the scan, per the core's error-handling design.
package txnerr

import "fmt"

// ErrKeyIsLocked is returned for a single key when, under snapshot
// isolation, CheckLock finds a conflicting lock. It is recoverable: the
// scanner has already advanced both cursors past the offending key before
// returning this error, so a subsequent ReadNext call continues the scan.
type ErrKeyIsLocked struct {
	Key     []byte
	Primary []byte
	StartTS uint64
	TTL     uint64
}

func (e *ErrKeyIsLocked) Error() string {
	return fmt.Sprintf("key is locked, key: %q, primary: %q, startTS: %v, ttl: %v", e.Key, e.Primary, e.StartTS, e.TTL)
}

// ErrCorruption signals that the storage engine's own invariants were
// violated, e.g. a write record points at a default-CF entry that isn't
// there. It is fatal to the current scan.
type ErrCorruption struct {
	Key    []byte
	Detail string
}

func (e *ErrCorruption) Error() string {
	return fmt.Sprintf("storage corruption at key %q: %s", e.Key, e.Detail)
}
