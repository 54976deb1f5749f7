package btree

import (
	"learndb/internal/dberr"
	"learndb/internal/record"
)

// Cursor walks a tree's leaves in key order. It holds (page, index,
// end_of_table) per §4.4 and snapshots the owning tree's generation
// counter at creation: any write to the tree after that invalidates it,
// and every operation reports ErrStaleCursor rather than reading
// whatever the mutation left behind.
type Cursor struct {
	tree       *BTree
	meta       *Meta
	page       uint32
	index      int
	endOfTable bool
	generation uint64
}

// CursorAtStart positions a cursor at the first cell of the leftmost
// leaf.
func (t *BTree) CursorAtStart() (*Cursor, error) {
	pgno, err := t.firstLeafPage()
	if err != nil {
		return nil, err
	}
	leaf, err := loadLeaf(t.meta, pgno)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		tree: t, meta: t.meta, page: pgno, index: 0,
		endOfTable: leaf.NumCells() == 0,
		generation: t.generation,
	}, nil
}

// CursorAtKey positions a cursor at key, or at the slot where it would
// be inserted if absent.
func (t *BTree) CursorAtKey(key int32) (*Cursor, error) {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	idx, _ := leaf.find(key)
	return &Cursor{
		tree: t, meta: t.meta, page: leaf.Page(), index: idx,
		endOfTable: idx >= int(leaf.NumCells()),
		generation: t.generation,
	}, nil
}

func (c *Cursor) checkStale() error {
	if c.generation != c.tree.generation {
		return dberr.ErrStaleCursor
	}
	return nil
}

// EndOfTable reports whether the cursor has advanced past the last cell.
func (c *Cursor) EndOfTable() bool { return c.endOfTable }

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() (int32, error) {
	if err := c.checkStale(); err != nil {
		return 0, err
	}
	if c.endOfTable {
		return 0, dberr.ErrNotFound
	}
	leaf, err := loadLeaf(c.meta, c.page)
	if err != nil {
		return 0, err
	}
	return leaf.KeyAt(c.index), nil
}

// Value returns a copy of the record bytes at the cursor's current
// position.
func (c *Cursor) Value() ([]byte, error) {
	if err := c.checkStale(); err != nil {
		return nil, err
	}
	if c.endOfTable {
		return nil, dberr.ErrNotFound
	}
	leaf, err := loadLeaf(c.meta, c.page)
	if err != nil {
		return nil, err
	}
	if c.index >= int(leaf.NumCells()) {
		return nil, dberr.Corrupt("cursor index beyond leaf cell count")
	}
	return append([]byte(nil), record.CellRecord(leaf.CellAt(c.index))...), nil
}

// Advance moves to the next cell, following next_leaf off the end of a
// leaf and setting EndOfTable when the chain runs out.
func (c *Cursor) Advance() error {
	if err := c.checkStale(); err != nil {
		return err
	}
	if c.endOfTable {
		return nil
	}
	leaf, err := loadLeaf(c.meta, c.page)
	if err != nil {
		return err
	}
	c.index++
	if c.index < int(leaf.NumCells()) {
		return nil
	}
	next := leaf.NextLeaf()
	if next == 0 {
		c.endOfTable = true
		return nil
	}
	nextLeaf, err := loadLeaf(c.meta, next)
	if err != nil {
		return err
	}
	c.page = next
	c.index = 0
	c.endOfTable = nextLeaf.NumCells() == 0
	return nil
}
