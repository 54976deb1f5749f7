package btree

import (
	"sort"

	"learndb/internal/dberr"
	"learndb/internal/pager"
	"learndb/internal/record"
)

// Leaf is a read/write view over a leaf page. All mutation happens
// directly on the underlying page buffer: cells grow down from the page
// end, the cell-pointer array grows up from the header, and deleted
// cells are threaded onto an intra-page free list rather than shifted.
type Leaf struct {
	meta *Meta
	page *pager.Page
}

func loadLeaf(m *Meta, n uint32) (*Leaf, error) {
	page, t, err := loadNodeType(m, n)
	if err != nil {
		return nil, err
	}
	if t != nodeTypeLeaf {
		return nil, dberr.Corrupt("expected leaf page")
	}
	return &Leaf{meta: m, page: page}, nil
}

func newLeaf(m *Meta, root bool, parent uint32) (*Leaf, error) {
	pgno, err := m.Pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	page, err := m.Pager.GetPage(pgno)
	if err != nil {
		return nil, err
	}
	formatEmptyLeaf(page, root, parent)
	return &Leaf{meta: m, page: page}, nil
}

func (l *Leaf) Page() uint32      { return l.page.PageNum }
func (l *Leaf) IsRoot() bool      { return isRoot(l.page) }
func (l *Leaf) SetRoot(v bool)    { setIsRoot(l.page, v); l.page.Dirty = true }
func (l *Leaf) Parent() uint32    { return parentPage(l.page) }
func (l *Leaf) SetParent(n uint32) {
	setParentPage(l.page, n)
	l.page.Dirty = true
}

func (l *Leaf) pageSize() uint32 { return uint32(len(l.page.Data)) }

func (l *Leaf) u32(off uint32) uint32   { return l.page.U32(off) }
func (l *Leaf) setU32(off, v uint32)    { l.page.SetU32(off, v) }

func (l *Leaf) NumCells() uint32          { return l.u32(leafNumCellsOff) }
func (l *Leaf) setNumCells(v uint32)      { l.setU32(leafNumCellsOff, v) }
func (l *Leaf) AllocPtr() uint32          { return l.u32(leafAllocPtrOff) }
func (l *Leaf) setAllocPtr(v uint32)      { l.setU32(leafAllocPtrOff, v) }
func (l *Leaf) FreeListHead() uint32      { return l.u32(leafFreeListOff) }
func (l *Leaf) setFreeListHead(v uint32)  { l.setU32(leafFreeListOff, v) }
func (l *Leaf) TotalFreeBytes() uint32    { return l.u32(leafTotalFreeOff) }
func (l *Leaf) setTotalFreeBytes(v uint32) { l.setU32(leafTotalFreeOff, v) }
func (l *Leaf) NextLeaf() uint32          { return l.u32(leafNextLeafOff) }
func (l *Leaf) SetNextLeaf(v uint32)      { l.setU32(leafNextLeafOff, v) }

func (l *Leaf) cellPtrOffset(i int) uint32 { return leafHeaderSize + uint32(i)*cellPointerSize }
func (l *Leaf) cellPtr(i int) uint32       { return l.u32(l.cellPtrOffset(i)) }
func (l *Leaf) setCellPtr(i int, v uint32) { l.setU32(l.cellPtrOffset(i), v) }

func (l *Leaf) cellPtrArrayEnd() uint32 {
	return leafHeaderSize + l.NumCells()*cellPointerSize
}

// CellAt returns the raw cell bytes (key|value_size|record) at index i.
func (l *Leaf) CellAt(i int) []byte {
	off := l.cellPtr(i)
	size := record.CellSize(l.page.Data[off : off+record.CellHeaderSize])
	return l.page.Data[off : off+uint32(size)]
}

// KeyAt returns the key at cell index i.
func (l *Leaf) KeyAt(i int) int32 { return record.CellKey(l.CellAt(i)) }

// find returns the index of key if present, or the insertion slot and
// false if not.
func (l *Leaf) find(key int32) (int, bool) {
	n := int(l.NumCells())
	idx := sort.Search(n, func(i int) bool { return l.KeyAt(i) >= key })
	if idx < n && l.KeyAt(idx) == key {
		return idx, true
	}
	return idx, false
}

func (l *Leaf) insertCellPointer(idx int, offset uint32) {
	n := int(l.NumCells())
	for i := n; i > idx; i-- {
		l.setCellPtr(i, l.cellPtr(i-1))
	}
	l.setCellPtr(idx, offset)
	l.setNumCells(uint32(n + 1))
}

func (l *Leaf) removeCellPointerAt(idx int) {
	n := int(l.NumCells())
	for i := idx; i < n-1; i++ {
		l.setCellPtr(i, l.cellPtr(i+1))
	}
	l.setNumCells(uint32(n - 1))
}

// freeListCarve first-fits `need` bytes out of the intra-page free list,
// per the spec's step 3: carve from a block's high end, keep the
// residual tracked only if it's still >= MinFreeBlock.
func (l *Leaf) freeListCarve(need uint32) (uint32, bool) {
	prev := uint32(0)
	cur := l.FreeListHead()
	for cur != 0 {
		size := l.u32(cur)
		next := l.u32(cur + 4)
		if size >= need {
			newOffset := cur + size - need
			residual := size - need
			if residual >= l.meta.MinFreeBlock {
				l.setU32(cur, residual)
				l.setTotalFreeBytes(l.TotalFreeBytes() - need)
			} else {
				if prev == 0 {
					l.setFreeListHead(next)
				} else {
					l.setU32(prev+4, next)
				}
				l.setTotalFreeBytes(l.TotalFreeBytes() - size)
			}
			return newOffset, true
		}
		prev = cur
		cur = next
	}
	return 0, false
}

// compact re-lays-out every live cell contiguously from the page end,
// clearing the free list and resetting alloc_ptr. Deterministic given
// the same cell set, so running it twice in a row is idempotent.
func (l *Leaf) compact() {
	n := int(l.NumCells())
	snapshots := make([][]byte, n)
	for i := 0; i < n; i++ {
		snapshots[i] = append([]byte(nil), l.CellAt(i)...)
	}
	offset := l.pageSize()
	for i := n - 1; i >= 0; i-- {
		offset -= uint32(len(snapshots[i]))
		copy(l.page.Data[offset:], snapshots[i])
		l.setCellPtr(i, offset)
	}
	l.setAllocPtr(offset)
	l.setFreeListHead(0)
	l.setTotalFreeBytes(0)
}

// allocSpace is the unallocated gap between the cell-pointer array and
// the lowest currently allocated cell.
func (l *Leaf) allocSpace() uint32 {
	return l.AllocPtr() - l.cellPtrArrayEnd()
}

// carve finds `need` contiguous bytes for a new cell, trying the free
// list, then the allocation block, then compacting, in the order the
// spec's insert algorithm (§4.3.2, steps 3-5) describes.
func (l *Leaf) carve(need uint32) (uint32, bool) {
	if off, ok := l.freeListCarve(need); ok {
		return off, true
	}
	if l.allocSpace() >= need+cellPointerSize {
		off := l.AllocPtr() - need
		l.setAllocPtr(off)
		return off, true
	}
	if l.TotalFreeBytes() > 0 {
		l.compact()
		if l.allocSpace() >= need+cellPointerSize {
			off := l.AllocPtr() - need
			l.setAllocPtr(off)
			return off, true
		}
	}
	return 0, false
}

// splitOutcome describes a leaf split: the cell set (old cells plus the
// new one) was redistributed into two freshly allocated pages, the old
// page has been returned to the pager, and splitKey is the rightmost key
// of the left sibling to propagate upward.
type splitOutcome struct {
	left, right uint32
	splitKey    int32
}

// Insert places key/recordBytes into the leaf. It returns (nil, nil) on
// a direct in-place insert, (*splitOutcome, nil) if the leaf had to
// split, or a non-nil error (ErrDuplicateKey if key already exists).
func (l *Leaf) Insert(key int32, recordBytes []byte) (*splitOutcome, error) {
	idx, found := l.find(key)
	if found {
		return nil, dberr.ErrDuplicateKey
	}

	cell := record.EncodeCell(key, recordBytes)
	need := uint32(len(cell))

	if off, ok := l.carve(need); ok {
		copy(l.page.Data[off:off+need], cell)
		l.insertCellPointer(idx, off)
		return nil, nil
	}

	return l.split(idx, cell)
}

// split redistributes the leaf's existing cells plus the new cell
// between two fresh pages, splitting on byte count with the tie going to
// the lower-keyed (left) sibling, per §4.3.2 step 6.
func (l *Leaf) split(insertIdx int, newCell []byte) (*splitOutcome, error) {
	n := int(l.NumCells())
	combined := make([][]byte, 0, n+1)
	for i := 0; i < insertIdx; i++ {
		combined = append(combined, l.CellAt(i))
	}
	combined = append(combined, newCell)
	for i := insertIdx; i < n; i++ {
		combined = append(combined, l.CellAt(i))
	}

	total := 0
	for _, c := range combined {
		total += len(c)
	}
	half := total / 2
	splitAt := 0
	leftBytes := 0
	for i, c := range combined {
		if leftBytes+len(c) > half && splitAt > 0 {
			break
		}
		leftBytes += len(c)
		splitAt = i + 1
	}

	leftCells := combined[:splitAt]
	rightCells := combined[splitAt:]

	parent := l.Parent()
	left, err := newLeaf(l.meta, false, parent)
	if err != nil {
		return nil, err
	}
	right, err := newLeaf(l.meta, false, parent)
	if err != nil {
		return nil, err
	}
	left.layoutAll(leftCells)
	right.layoutAll(rightCells)
	right.SetNextLeaf(l.NextLeaf())
	left.SetNextLeaf(right.Page())

	oldPage := l.Page()
	if err := l.meta.Pager.ReturnPage(oldPage); err != nil {
		return nil, err
	}

	l.meta.Log.WithFields(map[string]interface{}{
		"old": oldPage, "left": left.Page(), "right": right.Page(),
	}).Debug("btree: leaf split")

	return &splitOutcome{
		left:     left.Page(),
		right:    right.Page(),
		splitKey: record.CellKey(leftCells[len(leftCells)-1]),
	}, nil
}

// layoutAll writes cells (already sorted by key) contiguously from the
// page end, building a fresh cell-pointer array and leaving an empty
// free list — used when building a freshly allocated leaf from scratch
// (splits, bulk construction).
func (l *Leaf) layoutAll(cells [][]byte) {
	offset := l.pageSize()
	for i := len(cells) - 1; i >= 0; i-- {
		offset -= uint32(len(cells[i]))
		copy(l.page.Data[offset:], cells[i])
	}
	l.setAllocPtr(offset)
	n := len(cells)
	l.setNumCells(uint32(n))
	pos := offset
	for i := 0; i < n; i++ {
		l.setCellPtr(i, pos)
		pos += uint32(len(cells[i]))
	}
	l.setFreeListHead(0)
	l.setTotalFreeBytes(0)
}

// Delete removes the cell for key, returning (found, wasMaxKey). The
// freed region is threaded onto the intra-page free list as a new head
// block.
func (l *Leaf) Delete(key int32) (bool, bool) {
	idx, found := l.find(key)
	if !found {
		return false, false
	}
	off := l.cellPtr(idx)
	cell := l.CellAt(idx)
	size := uint32(len(cell))
	wasMax := idx == int(l.NumCells())-1

	l.removeCellPointerAt(idx)

	l.setU32(off, size)
	l.setU32(off+4, l.FreeListHead())
	l.setFreeListHead(off)
	l.setTotalFreeBytes(l.TotalFreeBytes() + size)

	return true, wasMax
}

// NeedsCompaction reports whether total_free_bytes exceeds the
// configured threshold fraction of the page and the leaf is below half
// full, the condition under which delete (§4.3.4 step 3) compacts.
func (l *Leaf) NeedsCompaction() bool {
	threshold := uint32(float64(l.pageSize()) * l.meta.CompactionThreshold)
	if l.TotalFreeBytes() <= threshold {
		return false
	}
	usable := l.pageSize() - leafHeaderSize
	used := l.pageSize() - l.AllocPtr() - l.TotalFreeBytes()
	return used*2 < usable
}

// CompactIfNeeded runs compaction if needed; exported so the tree layer can call
// it after a delete.
func (l *Leaf) CompactIfNeeded() {
	if l.NeedsCompaction() {
		l.compact()
	}
}
