package btree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"learndb/internal/dberr"
)

func TestLeafInsertAndFind(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	outcome, err := leaf.Insert(5, testRecord(t, m, "five"))
	require.NoError(t, err)
	require.Nil(t, outcome)

	outcome, err = leaf.Insert(2, testRecord(t, m, "two"))
	require.NoError(t, err)
	require.Nil(t, outcome)

	require.EqualValues(t, 2, leaf.NumCells())
	require.EqualValues(t, 2, leaf.KeyAt(0))
	require.EqualValues(t, 5, leaf.KeyAt(1))

	idx, found := leaf.find(2)
	require.True(t, found)
	require.Equal(t, 0, idx)
}

func TestLeafInsertDuplicateKeyFails(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	_, err = leaf.Insert(1, testRecord(t, m, "a"))
	require.NoError(t, err)
	_, err = leaf.Insert(1, testRecord(t, m, "b"))
	require.ErrorIs(t, err, dberr.ErrDuplicateKey)
}

func TestLeafDeleteThreadsFreeList(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	_, err = leaf.Insert(1, testRecord(t, m, "a"))
	require.NoError(t, err)
	_, err = leaf.Insert(2, testRecord(t, m, "b"))
	require.NoError(t, err)

	before := leaf.TotalFreeBytes()
	found, wasMax := leaf.Delete(1)
	require.True(t, found)
	require.False(t, wasMax)
	require.Greater(t, leaf.TotalFreeBytes(), before)
	require.NotZero(t, leaf.FreeListHead())

	_, found = leaf.find(1)
	require.False(t, found)
}

func TestLeafDeleteReportsMaxKey(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)
	_, err = leaf.Insert(1, testRecord(t, m, "a"))
	require.NoError(t, err)
	_, err = leaf.Insert(9, testRecord(t, m, "b"))
	require.NoError(t, err)

	_, wasMax := leaf.Delete(9)
	require.True(t, wasMax)
}

func TestLeafFreeListRecyclesDeletedSpace(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	_, err = leaf.Insert(1, testRecord(t, m, "aaaaaaaaaa"))
	require.NoError(t, err)
	allocBefore := leaf.AllocPtr()

	leaf.Delete(1)
	_, err = leaf.Insert(2, testRecord(t, m, "aaaaaaaaaa"))
	require.NoError(t, err)

	require.Equal(t, allocBefore, leaf.AllocPtr(), "reinsertion of a same-size record should reuse the freed block rather than carve fresh space")
}

func TestLeafCompactIsIdempotent(t *testing.T) {
	m := testMeta(t)
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	for i := int32(0); i < 5; i++ {
		_, err := leaf.Insert(i, testRecord(t, m, fmt.Sprintf("row-%d", i)))
		require.NoError(t, err)
	}
	leaf.Delete(1)
	leaf.Delete(3)

	leaf.compact()
	snapshot := append([]byte(nil), leaf.page.Data...)
	leaf.compact()
	require.Equal(t, snapshot, leaf.page.Data)
}

func TestLeafSplitOnOverflow(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	leaf, err := newLeaf(m, true, 0)
	require.NoError(t, err)

	// 4096-byte page; each small cell plus its pointer takes about 24
	// bytes, so the page overflows and splits well before 200 inserts.
	var lastOutcome *splitOutcome
	for i := int32(0); i < 200; i++ {
		name := fmt.Sprintf("row-%03d", i)
		out, err := leaf.Insert(i, testRecord(t, m, name))
		require.NoError(t, err)
		if out != nil {
			lastOutcome = out
			break
		}
	}
	require.NotNil(t, lastOutcome, "expected a split within 200 small inserts on a 4096-byte page")

	left, err := loadLeaf(m, lastOutcome.left)
	require.NoError(t, err)
	right, err := loadLeaf(m, lastOutcome.right)
	require.NoError(t, err)

	require.Equal(t, right.Page(), left.NextLeaf())
	require.EqualValues(t, lastOutcome.splitKey, left.KeyAt(int(left.NumCells())-1))
	require.Less(t, left.KeyAt(int(left.NumCells())-1), right.KeyAt(0))
}
