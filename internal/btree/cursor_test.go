package btree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"learndb/internal/dberr"
)

func TestCursorWalksInKeyOrder(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	const n = 100
	for i := int32(n - 1); i >= 0; i-- {
		require.NoError(t, tr.Insert(i, testRecord(t, m, fmt.Sprintf("row-%03d", i))))
	}

	cur, err := tr.CursorAtStart()
	require.NoError(t, err)

	var seen []int32
	for !cur.EndOfTable() {
		k, err := cur.Key()
		require.NoError(t, err)
		seen = append(seen, k)
		require.NoError(t, cur.Advance())
	}
	require.Len(t, seen, n)
	for i := int32(0); i < n; i++ {
		require.Equal(t, i, seen[i])
	}
}

func TestCursorEmptyTreeIsImmediatelyAtEnd(t *testing.T) {
	m := testMeta(t)
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	cur, err := tr.CursorAtStart()
	require.NoError(t, err)
	require.True(t, cur.EndOfTable())

	_, err = cur.Key()
	require.ErrorIs(t, err, dberr.ErrNotFound)
}

func TestCursorAtKeyPositionsOnExistingKey(t *testing.T) {
	m := testMeta(t)
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)
	require.NoError(t, tr.Insert(1, testRecord(t, m, "a")))
	require.NoError(t, tr.Insert(5, testRecord(t, m, "b")))
	require.NoError(t, tr.Insert(9, testRecord(t, m, "c")))

	cur, err := tr.CursorAtKey(5)
	require.NoError(t, err)
	require.False(t, cur.EndOfTable())
	k, err := cur.Key()
	require.NoError(t, err)
	require.EqualValues(t, 5, k)
}

func TestCursorInvalidatedByMutation(t *testing.T) {
	m := testMeta(t)
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)
	require.NoError(t, tr.Insert(1, testRecord(t, m, "a")))

	cur, err := tr.CursorAtStart()
	require.NoError(t, err)

	require.NoError(t, tr.Insert(2, testRecord(t, m, "b")))

	_, err = cur.Key()
	require.ErrorIs(t, err, dberr.ErrStaleCursor)
	_, err = cur.Value()
	require.ErrorIs(t, err, dberr.ErrStaleCursor)
	err = cur.Advance()
	require.ErrorIs(t, err, dberr.ErrStaleCursor)
}

func TestCursorAdvanceCrossesLeafBoundary(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	const n = 200
	for i := int32(0); i < n; i++ {
		require.NoError(t, tr.Insert(i, testRecord(t, m, fmt.Sprintf("row-%03d", i))))
	}

	cur, err := tr.CursorAtStart()
	require.NoError(t, err)
	count := 0
	for !cur.EndOfTable() {
		count++
		require.NoError(t, cur.Advance())
	}
	require.Equal(t, n, count)
}
