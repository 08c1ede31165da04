package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionsAndMergeLifecycle(t *testing.T) {
	medium := NewMemoryMedium()
	engine, err := Open(medium)
	require.NoError(t, err)

	key := []byte{1, 2}

	s := engine.NewSnapshot()
	s.Insert(key, []byte{5, 6, 7})
	require.NoError(t, s.Commit())

	s = engine.NewSnapshot()
	s.Remove(key)
	require.NoError(t, s.Commit())

	s = engine.NewSnapshot()
	s.Insert(key, []byte{8})
	require.NoError(t, s.Commit())

	s = engine.NewSnapshot()
	versions := s.Versions(key)
	require.Len(t, versions, 3)
	require.Equal(t, []bool{false, true, false}, []bool{versions[0].IsRemoved, versions[1].IsRemoved, versions[2].IsRemoved})

	val, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{8}, val)

	val, ok, err = s.GetUnremoved(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{8}, val)

	require.NoError(t, engine.Merge())

	engine2, err := Open(medium)
	require.NoError(t, err)
	s2 := engine2.NewSnapshot()
	require.Len(t, s2.Versions(key), 1)
	val, ok, err = s2.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{8}, val)
}

func TestTransactionConflict(t *testing.T) {
	medium := NewMemoryMedium()
	engine, err := Open(medium)
	require.NoError(t, err)

	key := []byte("foo")
	s0 := engine.NewSnapshot()
	s0.Insert(key, []byte{0})
	require.NoError(t, s0.Commit())

	s1 := engine.NewSnapshot()
	_, _, err = s1.Get(key)
	require.NoError(t, err)

	s2 := engine.NewSnapshot()
	_, _, err = s2.Get(key)
	require.NoError(t, err)
	s2.Insert(key, []byte{10})
	require.NoError(t, s2.Commit())

	s1.Insert(key, []byte{1})
	err = s1.Commit()
	require.Error(t, err)
	var conflict *TransactionConflictError
	require.ErrorAs(t, err, &conflict)

	fresh := engine.NewSnapshot()
	val, ok, err := fresh.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{10}, val)
}

func TestTornCommitDiscardsWholeTransaction(t *testing.T) {
	medium := NewMemoryMedium()
	engine, err := Open(medium)
	require.NoError(t, err)

	s := engine.NewSnapshot()
	s.Insert([]byte("a"), []byte{1})
	require.NoError(t, s.Commit())

	beforeSecond, err := medium.Len()
	require.NoError(t, err)

	s2 := engine.NewSnapshot()
	s2.Insert([]byte("b"), []byte{2})
	require.NoError(t, s2.Commit())

	// Simulate a torn tail: truncate 1 byte out of the second transaction's
	// commit record.
	full, err := medium.Len()
	require.NoError(t, err)
	require.NoError(t, medium.Truncate(full-1))

	reopened, err := Open(medium)
	require.NoError(t, err)

	newLen, err := medium.Len()
	require.NoError(t, err)
	require.Equal(t, beforeSecond, newLen)

	rs := reopened.NewSnapshot()
	_, ok, err := rs.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)

	val, ok, err := rs.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, val)
}

func TestGetInTrashUntilMerge(t *testing.T) {
	medium := NewMemoryMedium()
	engine, err := Open(medium)
	require.NoError(t, err)

	key := []byte("s")
	s := engine.NewSnapshot()
	s.Insert(key, []byte("hello"))
	require.NoError(t, s.Commit())

	s2 := engine.NewSnapshot()
	s2.Remove(key)
	require.NoError(t, s2.Commit())

	s3 := engine.NewSnapshot()
	_, ok, err := s3.Get(key)
	require.NoError(t, err)
	require.False(t, ok)

	val, removed, ok, err := engine.GetInTrash(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, removed)
	require.Equal(t, []byte("hello"), val)

	require.NoError(t, engine.Merge())

	_, _, ok, err = engine.GetInTrash(key)
	require.NoError(t, err)
	require.False(t, ok)
}
