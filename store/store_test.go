package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringjobs/ringjobs/ring"
)

func id(b byte) ring.ID {
	return ring.ID{b}
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	s := New([]byte("secret"))
	rec := s.LocalPut(id(10), []byte("hello"))
	require.EqualValues(t, 1, rec.Version)

	got, ok := s.LocalGet(id(10))
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got.Value)
}

func TestLocalPutIncrementsVersion(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(10), []byte("v1"))
	rec := s.LocalPut(id(10), []byte("v2"))
	require.EqualValues(t, 2, rec.Version)
}

func TestLocalGetDetectsTamperedChecksum(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(10), []byte("hello"))

	s.mu.Lock()
	rec := s.records[keyOf(id(10))]
	rec.Value = []byte("tampered")
	s.records[keyOf(id(10))] = rec
	s.mu.Unlock()

	_, ok := s.LocalGet(id(10))
	require.False(t, ok)
}

func TestLocalDeleteRemovesKey(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(10), []byte("hello"))
	s.LocalDelete(id(10))

	_, ok := s.LocalGet(id(10))
	require.False(t, ok)
}

func TestAcceptVersionedRejectsStale(t *testing.T) {
	s := New([]byte("secret"))
	require.True(t, s.AcceptVersioned(id(10), []byte("v2"), 2))
	require.False(t, s.AcceptVersioned(id(10), []byte("v1"), 1))

	got, ok := s.LocalGet(id(10))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got.Value)
}

func TestAcceptVersionedAcceptsNewer(t *testing.T) {
	s := New([]byte("secret"))
	require.True(t, s.AcceptVersioned(id(10), []byte("v1"), 1))
	require.True(t, s.AcceptVersioned(id(10), []byte("v2"), 2))

	got, ok := s.LocalGet(id(10))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got.Value)
}

func TestKeysInArcSelectsOnlyInArc(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(5), []byte("in"))
	s.LocalPut(id(50), []byte("in-too"))
	s.LocalPut(id(200), []byte("out"))

	recs := s.KeysInArc(id(0), id(100))
	keys := map[byte]bool{}
	for _, r := range recs {
		keys[r.Key[0]] = true
	}
	require.True(t, keys[5])
	require.True(t, keys[50])
	require.False(t, keys[200])
}

func TestDeleteKeysRemovesOnlyListed(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(5), []byte("a"))
	s.LocalPut(id(6), []byte("b"))

	s.DeleteKeys([]ring.ID{id(5)})

	_, ok5 := s.LocalGet(id(5))
	require.False(t, ok5)
	_, ok6 := s.LocalGet(id(6))
	require.True(t, ok6)
}

func TestAllReturnsEveryRecord(t *testing.T) {
	s := New([]byte("secret"))
	s.LocalPut(id(1), []byte("a"))
	s.LocalPut(id(2), []byte("b"))

	require.Len(t, s.All(), 2)
}
