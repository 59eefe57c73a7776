package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinykv-scan/kv/codec"
	"github.com/pingcap-incubator/tinykv-scan/kv/engine_util"
	"github.com/pingcap-incubator/tinykv-scan/kv/mvcc"
	"github.com/pingcap-incubator/tinykv-scan/kv/storage"
	"github.com/pingcap-incubator/tinykv-scan/kv/txnerr"
)

func encodedUserKey(userKey string) []byte {
	return codec.ReserveForTS(codec.EncodeBytes([]byte(userKey)))
}

func putCommit(snap *storage.MemSnapshot, userKey string, kind mvcc.WriteKind, startTS, commitTS uint64, shortValue []byte) {
	key := codec.AppendTS(encodedUserKey(userKey), commitTS)
	w := &mvcc.Write{Kind: kind, StartTS: startTS, ShortValue: shortValue}
	snap.Put(engine_util.CfWrite, key, w.ToBytes())
}

func putPut(snap *storage.MemSnapshot, userKey, value string, commitTS uint64) {
	putCommit(snap, userKey, mvcc.WriteKindPut, commitTS-1, commitTS, []byte(value))
}

func putPutOutOfLine(snap *storage.MemSnapshot, userKey, value string, startTS, commitTS uint64) {
	putCommit(snap, userKey, mvcc.WriteKindPut, startTS, commitTS, nil)
	defaultKey := codec.AppendTS(encodedUserKey(userKey), startTS)
	snap.Put(engine_util.CfDefault, defaultKey, []byte(value))
}

func putDelete(snap *storage.MemSnapshot, userKey string, commitTS uint64) {
	putCommit(snap, userKey, mvcc.WriteKindDelete, commitTS-1, commitTS, nil)
}

func putRollback(snap *storage.MemSnapshot, userKey string, ts uint64) {
	putCommit(snap, userKey, mvcc.WriteKindRollback, ts, ts, nil)
}

func putLock(snap *storage.MemSnapshot, userKey, primary string, startTS, ttl uint64) {
	key := codec.EncodeBytes([]byte(userKey))
	l := &mvcc.Lock{Primary: []byte(primary), StartTS: startTS, TTL: ttl, Kind: mvcc.WriteKindPut}
	snap.Put(engine_util.CfLock, key, l.ToBytes())
}

func readAll(t *testing.T, s *ForwardScanner) (results []KV, err error) {
	for {
		kv, err := s.ReadNext()
		if err != nil {
			return results, err
		}
		if kv == nil {
			return results, nil
		}
		results = append(results, *kv)
	}
}

func TestSimpleVisibility(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "a", "1", 5)
	putPut(snap, "a", "2", 10)
	putPut(snap, "b", "x", 3)

	s, err := NewBuilder(snap, 7).Range([]byte("a"), []byte("z")).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", string(results[0].UserKey))
	require.Equal(t, "1", string(results[0].Value))
	require.Equal(t, "b", string(results[1].UserKey))
	require.Equal(t, "x", string(results[1].Value))
}

func TestTombstoneHidesKey(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "a", "1", 5)
	putDelete(snap, "a", 8)
	putPut(snap, "b", "y", 6)

	s, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", string(results[0].UserKey))
	require.Equal(t, "y", string(results[0].Value))
}

func TestRollbackIsSkipped(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "a", "v", 5)
	putRollback(snap, "a", 9)

	s, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", string(results[0].UserKey))
	require.Equal(t, "v", string(results[0].Value))
}

func TestLockUnderSIReturnsRecoverableError(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putLock(snap, "a", "a", 4, 1000)
	putPut(snap, "b", "y", 3)

	s, err := NewBuilder(snap, 10).IsolationLevel(mvcc.SI).Build()
	require.NoError(t, err)
	defer s.Close()

	kv, err := s.ReadNext()
	require.Nil(t, kv)
	require.Error(t, err)
	var lockErr *txnerr.ErrKeyIsLocked
	require.ErrorAs(t, err, &lockErr)

	kv, err = s.ReadNext()
	require.NoError(t, err)
	require.NotNil(t, kv)
	require.Equal(t, "b", string(kv.UserKey))
	require.Equal(t, "y", string(kv.Value))

	kv, err = s.ReadNext()
	require.NoError(t, err)
	require.Nil(t, kv)
}

func TestLockUnderRCIsIgnored(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putLock(snap, "a", "a", 4, 1000)
	putPut(snap, "b", "y", 3)

	s, err := NewBuilder(snap, 10).IsolationLevel(mvcc.RC).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b", string(results[0].UserKey))
	require.Equal(t, "y", string(results[0].Value))
}

func TestDeepHistoryFallsBackToSeek(t *testing.T) {
	snap := storage.NewMemSnapshot()
	for i := 0; i < 2*SeekBound; i++ {
		commitTS := uint64(100 - i)
		putPut(snap, "a", "stale", commitTS)
	}
	putPut(snap, "a", "oldest", 1)

	s, err := NewBuilder(snap, 1).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", string(results[0].UserKey))
	require.Equal(t, "oldest", string(results[0].Value))

	stats := s.TakeStatistics()
	require.GreaterOrEqual(t, stats.Write.Seek, 1)
}

func TestEmptyEngineYieldsNone(t *testing.T) {
	snap := storage.NewMemSnapshot()
	s, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer s.Close()

	kv, err := s.ReadNext()
	require.NoError(t, err)
	require.Nil(t, kv)
}

func TestRangeExcludesAllKeys(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "m", "v", 5)

	s, err := NewBuilder(snap, 10).Range([]byte("a"), []byte("b")).Build()
	require.NoError(t, err)
	defer s.Close()

	kv, err := s.ReadNext()
	require.NoError(t, err)
	require.Nil(t, kv)
}

func TestReadNextStaysExhausted(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "a", "1", 5)

	s, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadNext()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		kv, err := s.ReadNext()
		require.NoError(t, err)
		require.Nil(t, kv)
	}
}

func TestOmitValueYieldsEmptyValues(t *testing.T) {
	snap := storage.NewMemSnapshot()
	putPut(snap, "a", "1", 5)
	putPut(snap, "b", "x", 3)

	withValues, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer withValues.Close()
	full, err := readAll(t, withValues)
	require.NoError(t, err)

	omitted, err := NewBuilder(snap, 10).OmitValue(true).Build()
	require.NoError(t, err)
	defer omitted.Close()
	empty, err := readAll(t, omitted)
	require.NoError(t, err)

	require.Len(t, empty, len(full))
	for i := range full {
		require.Equal(t, full[i].UserKey, empty[i].UserKey)
		require.Empty(t, empty[i].Value)
	}
}

func TestOutOfLineValueUsesDefaultCF(t *testing.T) {
	snap := storage.NewMemSnapshot()
	big := make([]byte, 512)
	for i := range big {
		big[i] = byte(i)
	}
	putPutOutOfLine(snap, "a", string(big), 4, 5)
	putPutOutOfLine(snap, "b", "second-large-value", 7, 8)

	s, err := NewBuilder(snap, 10).Build()
	require.NoError(t, err)
	defer s.Close()

	results, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, string(big), string(results[0].Value))
	require.Equal(t, "second-large-value", string(results[1].Value))
}
