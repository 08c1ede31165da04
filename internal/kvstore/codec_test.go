package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeaderRoundtrip(t *testing.T) {
	raw, err := Encode(Entry{Kind: KindInsert, Key: []byte("hello"), Value: []byte("world")})
	require.NoError(t, err)

	shape, err := DecodeHeader(raw[0])
	require.NoError(t, err)
	require.False(t, shape.IsRemove)

	k := int(getFixedUint(raw[1 : 1+shape.KeyLen]))
	v := int(getFixedUint(raw[1+shape.KeyLen : 1+shape.KeyLen+shape.ValLen]))
	require.Equal(t, 5, k)
	require.Equal(t, 5, v)
}

func TestRemoveFlagDistinguishesEmptyInsertFromRemove(t *testing.T) {
	insertEmpty, err := Encode(Entry{Kind: KindInsert, Key: []byte("k"), Value: nil})
	require.NoError(t, err)
	remove, err := Encode(Entry{Kind: KindRemove, Key: []byte("k")})
	require.NoError(t, err)

	insertShape, err := DecodeHeader(insertEmpty[0])
	require.NoError(t, err)
	require.False(t, insertShape.IsRemove)

	removeShape, err := DecodeHeader(remove[0])
	require.NoError(t, err)
	require.True(t, removeShape.IsRemove)
}

func TestCommitTimestampRoundtrip(t *testing.T) {
	entry, err := Encode(Entry{Kind: KindCommit, Value: EncodeCommitTimestamp(1234567890123)})
	require.NoError(t, err)
	shape, err := DecodeHeader(entry[0])
	require.NoError(t, err)
	need := 1 + shape.KeyLen + shape.ValLen
	value := entry[need : need+bytesTimestampFull]
	require.Equal(t, int64(1234567890123), CommitTimestamp(value))
}

func TestMaxSizeExceeded(t *testing.T) {
	_, err := Encode(Entry{Kind: KindInsert, Key: []byte("k"), Value: make([]byte, maxValueBytes+1)})
	require.Error(t, err)
	var tooBig *MaxSizeExceededError
	require.ErrorAs(t, err, &tooBig)
}

func TestInvalidHeaderRejected(t *testing.T) {
	_, err := DecodeHeader(0b111_11_111)
	require.Error(t, err)
}
