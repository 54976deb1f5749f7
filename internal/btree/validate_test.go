package btree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePassesOnHealthyTree(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(i, testRecord(t, m, fmt.Sprintf("row-%03d", i))))
	}
	require.NoError(t, tr.Validate())
}

func TestValidateDetectsOutOfOrderLeafKeys(t *testing.T) {
	m := testMeta(t)
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(1, testRecord(t, m, "a")))
	require.NoError(t, tr.Insert(2, testRecord(t, m, "b")))
	require.NoError(t, tr.Insert(3, testRecord(t, m, "c")))

	leaf, err := loadLeaf(m, tr.RootPage())
	require.NoError(t, err)

	// Swap two cell-pointer-array slots directly to corrupt the leaf's
	// ascending key order without going through Insert/Delete.
	p0 := leaf.cellPtr(0)
	p2 := leaf.cellPtr(2)
	leaf.setCellPtr(0, p2)
	leaf.setCellPtr(2, p0)

	err = tr.Validate()
	require.Error(t, err)
}

func TestValidateDetectsEmptyNonRootLeaf(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(i, testRecord(t, m, fmt.Sprintf("row-%03d", i))))
	}
	require.NoError(t, tr.Validate())

	leafPage, err := tr.firstLeafPage()
	require.NoError(t, err)
	firstLeaf, err := loadLeaf(m, leafPage)
	require.NoError(t, err)
	firstLeaf.setNumCells(0)

	err = tr.Validate()
	require.Error(t, err)
}

func TestCollectLivePagesCoversWholeTree(t *testing.T) {
	m := testMeta(t)
	m.MaxCellSize = 64
	tr, err := CreateAt(m, 2)
	require.NoError(t, err)

	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(i, testRecord(t, m, fmt.Sprintf("row-%03d", i))))
	}

	live, err := CollectLivePages(m, tr.RootPage())
	require.NoError(t, err)
	require.Contains(t, live, tr.RootPage())
	require.Greater(t, len(live), 1, "a 300-row tree with a tiny MaxCellSize should span more than one page")
}
