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

// Package codec encodes user keys and timestamps into the memcomparable
// byte strings the lock, write and default column families store their
// keys as. The scheme is based on the MyRocks record format: a user key is
// split into 8-byte groups, each followed by a marker byte that records how
// many of the group's bytes are real payload, so that two encoded keys
// compare byte-for-byte in the same order as the original keys.
package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	groupSize   = 8
	padByte     = 0x0
	markerTotal = groupSize + 1
)

var pads = make([]byte, groupSize)

// EncodeBytes turns a raw user key into its memcomparable form.
func EncodeBytes(key []byte) []byte {
	dLen := len(key)
	reserve := (dLen/groupSize + 1) * markerTotal
	result := make([]byte, 0, reserve)
	for idx := 0; idx <= dLen; idx += groupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= groupSize {
			result = append(result, key[idx:idx+groupSize]...)
		} else {
			padCount = groupSize - remain
			result = append(result, key[idx:]...)
			result = append(result, pads[:padCount]...)
		}
		marker := byte(groupSize - padCount)
		result = append(result, marker)
	}
	return result
}

// ErrCodecBadPadding is returned by DecodeBytes when an encoded group's
// padding bytes are not zero, or the marker byte is out of range.
var ErrCodecBadPadding = errors.New("codec: invalid memcomparable padding")

// DecodeBytes decodes the memcomparable prefix of b, returning the decoded
// user key and whatever bytes of b remain after the encoding (typically the
// 8-byte timestamp suffix appended by AppendTS).
func DecodeBytes(b []byte) (remaining []byte, key []byte, err error) {
	for {
		if len(b) < markerTotal {
			return nil, nil, errors.Errorf("codec: insufficient bytes to decode value, %q", b)
		}
		groupBytes := b[:markerTotal]
		group := groupBytes[:groupSize]
		marker := groupBytes[groupSize]

		padCount := groupSize - int(marker)
		if padCount < 0 || padCount > groupSize {
			return nil, nil, ErrCodecBadPadding
		}
		realGroupSize := groupSize - padCount
		key = append(key, group[:realGroupSize]...)
		b = b[markerTotal:]

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != padByte {
					return nil, nil, ErrCodecBadPadding
				}
			}
			return b, key, nil
		}
	}
}

// AppendTS appends ts, bitwise-inverted and big-endian encoded, to an
// already memcomparable-encoded user key. Because larger timestamps must
// sort first within the same user key, inverting ts turns ascending
// timestamp order into descending byte order.
//
// encodedUserKey must have at least 8 bytes of spare capacity (see
// ReserveForTS) or this call reallocates.
func AppendTS(encodedUserKey []byte, ts uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ^ts)
	return append(encodedUserKey, buf[:]...)
}

// ReserveForTS copies encodedUserKey into a new slice whose backing array
// has 8 bytes of spare capacity, so a subsequent AppendTS on the result (or
// any of its later re-slices sharing the same length) never reallocates.
func ReserveForTS(encodedUserKey []byte) []byte {
	buf := make([]byte, len(encodedUserKey), len(encodedUserKey)+8)
	copy(buf, encodedUserKey)
	return buf
}

// DecodeUserKey extracts the original user key from an encoded
// key-with-timestamp.
func DecodeUserKey(encodedWithTS []byte) ([]byte, error) {
	withoutTS, err := trimTS(encodedWithTS)
	if err != nil {
		return nil, err
	}
	_, key, err := DecodeBytes(withoutTS)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// DecodeTS extracts the timestamp from an encoded key-with-timestamp.
func DecodeTS(encodedWithTS []byte) (uint64, error) {
	if len(encodedWithTS) < 8 {
		return 0, errors.Errorf("codec: key %q too short to contain a timestamp", encodedWithTS)
	}
	tail := encodedWithTS[len(encodedWithTS)-8:]
	return ^binary.BigEndian.Uint64(tail), nil
}

func trimTS(encodedWithTS []byte) ([]byte, error) {
	if len(encodedWithTS) < 8 {
		return nil, errors.Errorf("codec: key %q too short to contain a timestamp", encodedWithTS)
	}
	return encodedWithTS[:len(encodedWithTS)-8], nil
}

// UserKeyEqual reports whether the user-key portion of an encoded
// key-with-timestamp equals encodedUserKey (itself already memcomparable
// encoded, with no timestamp suffix). It compares bytes directly rather
// than decoding, since this check is on the scanner's hot path.
func UserKeyEqual(encodedWithTS []byte, encodedUserKey []byte) bool {
	if len(encodedWithTS) != len(encodedUserKey)+8 {
		return false
	}
	for i := range encodedUserKey {
		if encodedWithTS[i] != encodedUserKey[i] {
			return false
		}
	}
	return true
}
