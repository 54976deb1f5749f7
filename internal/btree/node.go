// Package btree implements the ordered key -> record store: leaf and
// internal nodes over pager.Page buffers, splits, intra-page compaction,
// deletes with structural repair, cursors, and validation.
package btree

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"learndb/internal/dberr"
	"learndb/internal/pager"
	"learndb/internal/record"
)

// Node type tags, stored in byte 0 of every page.
const (
	nodeTypeLeaf     byte = 1
	nodeTypeInternal byte = 2
)

// Common header, present on every node: [type:1|isRoot:1|parentPage:4].
const (
	commonHeaderSize  = 6
	typeOffset        = 0
	isRootOffset      = 1
	parentPageOffset  = 2
)

// Leaf-specific header, following the common header:
// [numCells:4|allocPtr:4|freeListHead:4|totalFreeBytes:4|nextLeaf:4].
const (
	leafNumCellsOff    = commonHeaderSize
	leafAllocPtrOff    = commonHeaderSize + 4
	leafFreeListOff    = commonHeaderSize + 8
	leafTotalFreeOff   = commonHeaderSize + 12
	leafNextLeafOff    = commonHeaderSize + 16
	leafHeaderSize     = commonHeaderSize + 20
	cellPointerSize    = 4
	freeBlockHeaderLen = 8 // [size:4|next:4], also MIN_FREE_BLOCK's floor
)

// Internal-specific header: [numKeys:4|rightChild:4].
const (
	internalNumKeysOff    = commonHeaderSize
	internalRightChildOff = commonHeaderSize + 4
	internalHeaderSize    = commonHeaderSize + 8
	internalCellSize      = 8 // [childPage:4|key:4]
)

// Meta bundles everything every node needs beyond its own page: where to
// allocate/return pages, the table's schema, and the tunables from
// dbconfig that bound cell size and drive compaction.
type Meta struct {
	Pager               *pager.Pager
	Schema              record.Schema
	MaxCellSize         int
	MinFreeBlock        uint32
	CompactionThreshold float64
	Log                 *logrus.Logger
}

func nodeType(page *pager.Page) byte { return page.Data[typeOffset] }

func isRoot(page *pager.Page) bool { return page.Data[isRootOffset] != 0 }

func setIsRoot(page *pager.Page, v bool) {
	if v {
		page.Data[isRootOffset] = 1
	} else {
		page.Data[isRootOffset] = 0
	}
}

func parentPage(page *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(page.Data[parentPageOffset : parentPageOffset+4])
}

func setParentPage(page *pager.Page, n uint32) {
	binary.LittleEndian.PutUint32(page.Data[parentPageOffset:parentPageOffset+4], n)
}

// formatEmptyLeaf zeroes page and writes an empty leaf header onto it.
func formatEmptyLeaf(page *pager.Page, root bool, parent uint32) {
	for i := range page.Data {
		page.Data[i] = 0
	}
	page.Data[typeOffset] = nodeTypeLeaf
	setIsRoot(page, root)
	setParentPage(page, parent)
	binary.LittleEndian.PutUint32(page.Data[leafAllocPtrOff:leafAllocPtrOff+4], uint32(len(page.Data)))
	page.Dirty = true
}

// formatEmptyInternal zeroes page and writes an internal header with a
// single right child and no keys onto it.
func formatEmptyInternal(page *pager.Page, root bool, parent uint32, rightChild uint32) {
	for i := range page.Data {
		page.Data[i] = 0
	}
	page.Data[typeOffset] = nodeTypeInternal
	setIsRoot(page, root)
	setParentPage(page, parent)
	binary.LittleEndian.PutUint32(page.Data[internalRightChildOff:internalRightChildOff+4], rightChild)
	page.Dirty = true
}

// MaxCellSize computes the largest cell (key+value_size header plus
// record bytes) a leaf of the given page size can ever hold, sized so
// at least two max-size cells plus their cell pointers fit below the
// header, per §3's concrete sizing.
func MaxCellSize(pageSize uint32) int {
	return (int(pageSize) - leafHeaderSize - 2*cellPointerSize) / 2
}

// FormatNewRoot formats pgno (already allocated by the caller) as an
// empty leaf root, used by the catalog when creating a new table's tree
// without needing that table's record.Schema on hand yet.
func FormatNewRoot(p *pager.Pager, pgno uint32) error {
	page, err := p.GetPage(pgno)
	if err != nil {
		return err
	}
	formatEmptyLeaf(page, true, 0)
	return nil
}

// loadNodeType fetches page n and classifies it, failing CorruptPage on
// an unrecognized tag.
func loadNodeType(m *Meta, n uint32) (*pager.Page, byte, error) {
	page, err := m.Pager.GetPage(n)
	if err != nil {
		return nil, 0, err
	}
	t := nodeType(page)
	if t != nodeTypeLeaf && t != nodeTypeInternal {
		return nil, 0, dberr.Corrupt("unrecognized node type tag")
	}
	return page, t, nil
}
