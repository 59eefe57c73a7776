package codec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBytesRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("shortkey"),
		[]byte("exactly8"),
		[]byte("more than eight bytes of key material"),
		bytes.Repeat([]byte{0}, 17),
	}
	for _, c := range cases {
		encoded := EncodeBytes(c)
		rest, decoded, err := DecodeBytes(encoded)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, c, decoded)
	}
}

func TestEncodeBytesPreservesOrder(t *testing.T) {
	keys := [][]byte{
		[]byte("a"),
		[]byte("aa"),
		[]byte("ab"),
		[]byte("b"),
		[]byte("exactly8"),
		[]byte("exactly8x"),
		[]byte("z"),
	}
	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		encoded[i] = EncodeBytes(k)
	}
	shuffled := append([][]byte{}, encoded...)
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) < 0 })
	require.Equal(t, encoded, shuffled)
}

func TestAppendTSOrdersLargerFirst(t *testing.T) {
	userKey := EncodeBytes([]byte("somekey"))
	low := AppendTS(ReserveForTS(userKey), 5)
	high := AppendTS(ReserveForTS(userKey), 10)
	require.True(t, bytes.Compare(high, low) < 0, "larger ts must sort before smaller ts for the same user key")
}

func TestAppendTSNoReallocation(t *testing.T) {
	userKey := ReserveForTS(EncodeBytes([]byte("k")))
	before := cap(userKey)
	withTS := AppendTS(userKey, 42)
	require.Equal(t, before, cap(withTS))
	require.Equal(t, len(userKey)+8, len(withTS))
}

func TestDecodeUserKeyAndTS(t *testing.T) {
	raw := []byte("hello-world")
	encoded := AppendTS(ReserveForTS(EncodeBytes(raw)), 123)

	gotKey, err := DecodeUserKey(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, gotKey)

	gotTS, err := DecodeTS(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(123), gotTS)
}

func TestUserKeyEqual(t *testing.T) {
	a := EncodeBytes([]byte("a"))
	b := EncodeBytes([]byte("b"))
	withTS := AppendTS(ReserveForTS(a), 7)

	require.True(t, UserKeyEqual(withTS, a))
	require.False(t, UserKeyEqual(withTS, b))
}
