package btree

import (
	"learndb/internal/dberr"
	"learndb/internal/record"
)

// BTree is a handle onto one ordered key -> record tree living at a
// fixed root page. Per the design note on root permanence (DESIGN.md),
// the root's page number never changes for the tree's lifetime: a split
// that reaches the root rewrites that page in place as a fresh internal
// node rather than allocating a new one.
type BTree struct {
	meta       *Meta
	root       uint32
	generation uint64
}

// CreateAt formats page as a fresh, empty root leaf and returns a handle
// to it. The caller (catalog or db layer) owns allocating the page.
func CreateAt(m *Meta, rootPage uint32) (*BTree, error) {
	page, err := m.Pager.GetPage(rootPage)
	if err != nil {
		return nil, err
	}
	formatEmptyLeaf(page, true, 0)
	return &BTree{meta: m, root: rootPage}, nil
}

// OpenAt wraps an already-formatted root page.
func OpenAt(m *Meta, rootPage uint32) *BTree {
	return &BTree{meta: m, root: rootPage}
}

// RootPage returns the tree's permanent root page number.
func (t *BTree) RootPage() uint32 { return t.root }

// Generation returns the current mutation counter, snapshotted by
// cursors to detect staleness.
func (t *BTree) Generation() uint64 { return t.generation }

func (t *BTree) findLeaf(key int32) (*Leaf, error) {
	pgno := t.root
	for {
		page, typ, err := loadNodeType(t.meta, pgno)
		if err != nil {
			return nil, err
		}
		if typ == nodeTypeLeaf {
			return &Leaf{meta: t.meta, page: page}, nil
		}
		in := &Internal{meta: t.meta, page: page}
		pgno = in.ChildFor(key)
	}
}

func (t *BTree) firstLeafPage() (uint32, error) {
	pgno := t.root
	for {
		page, typ, err := loadNodeType(t.meta, pgno)
		if err != nil {
			return 0, err
		}
		if typ == nodeTypeLeaf {
			return pgno, nil
		}
		in := &Internal{meta: t.meta, page: page}
		if in.NumKeys() > 0 {
			pgno = in.ChildAt(0)
		} else {
			pgno = in.RightChild()
		}
	}
}

// Find returns a copy of the record bytes stored under key, or
// ErrNotFound.
func (t *BTree) Find(key int32) ([]byte, error) {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	idx, found := leaf.find(key)
	if !found {
		return nil, dberr.ErrNotFound
	}
	return append([]byte(nil), record.CellRecord(leaf.CellAt(idx))...), nil
}

// Insert adds (key, recordBytes) to the tree, splitting leaves and
// internal nodes and propagating upward as needed.
func (t *BTree) Insert(key int32, recordBytes []byte) error {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	parent := leaf.Parent()
	self := leaf.Page()
	first, err := t.firstLeafPage()
	if err != nil {
		return err
	}

	outcome, err := leaf.Insert(key, recordBytes)
	if err != nil {
		return err
	}
	t.generation++
	if outcome == nil {
		return nil
	}
	// The split returned self to the pager; relink its predecessor.
	if first != self {
		pred, err := t.findPredecessorLeaf(self)
		if err != nil {
			return err
		}
		if pred != nil {
			pred.SetNextLeaf(outcome.left)
		}
	}
	return t.propagateSplit(parent, self, outcome.left, outcome.right, outcome.splitKey)
}

// propagateSplit splices (left, right, splitKey) into the parent that
// used to reference oldChild, recursing upward through further internal
// splits until one absorbs the split without overflowing, or the split
// reaches the root.
func (t *BTree) propagateSplit(parentPage, oldChild, left, right uint32, splitKey int32) error {
	if parentPage == 0 {
		return t.rewriteRootAfterSplit(left, right, splitKey)
	}
	parent, err := loadInternal(t.meta, parentPage)
	if err != nil {
		return err
	}
	grandparent := parent.Parent()
	res, err := parent.InsertChildSplit(oldChild, left, right, splitKey)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return t.propagateSplit(grandparent, parentPage, res.left, res.right, res.promotedKey)
}

// rewriteRootAfterSplit handles a split that reached the root: the old
// root's page (already freed by the child split that bubbled up here)
// is reclaimed under its own number and reformatted as the new internal
// root referencing left and right, keeping the tree's root page number
// permanent.
func (t *BTree) rewriteRootAfterSplit(left, right uint32, splitKey int32) error {
	ok, err := t.meta.Pager.ReclaimPage(t.root)
	if err != nil {
		return err
	}
	if !ok {
		return dberr.Invariant("root split: expected former root page to be free")
	}
	page, err := t.meta.Pager.GetPage(t.root)
	if err != nil {
		return err
	}
	formatEmptyInternal(page, true, 0, right)
	newRoot := &Internal{meta: t.meta, page: page}
	newRoot.layoutAll([]uint32{left, right}, []int32{splitKey})

	if err := reparentChildren(t.meta, []uint32{left, right}, t.root); err != nil {
		return err
	}
	t.meta.Log.WithField("root", t.root).Debug("btree: root split, height increased")
	return nil
}

// Delete removes key, returning ErrNotFound if absent. It propagates a
// change of maximum key upward through separators, compacts the leaf if
// warranted, and collapses empty/unary nodes per §4.3.4.
func (t *BTree) Delete(key int32) error {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	found, wasMax := leaf.Delete(key)
	if !found {
		return dberr.ErrNotFound
	}
	t.generation++

	if wasMax {
		if newMax, ok := t.leafMaxKey(leaf); ok {
			if err := t.propagateMaxKeyUpdate(leaf.Page(), leaf.Parent(), newMax); err != nil {
				return err
			}
		}
	}

	if leaf.NumCells() == 0 {
		return t.collapseEmptyLeaf(leaf)
	}
	leaf.CompactIfNeeded()
	return nil
}

func (t *BTree) leafMaxKey(leaf *Leaf) (int32, bool) {
	n := leaf.NumCells()
	if n == 0 {
		return 0, false
	}
	return leaf.KeyAt(int(n) - 1), true
}

// propagateMaxKeyUpdate walks ancestors starting at childPage/parentPage,
// rewriting the separator that bounds childPage with newKey. It stops as
// soon as an ancestor's own cell array (not its implicit right_child)
// carries that bound, since separators further up are unaffected by a
// change strictly within this subtree's upper edge.
func (t *BTree) propagateMaxKeyUpdate(childPage, parentPage uint32, newKey int32) error {
	for parentPage != 0 {
		parent, err := loadInternal(t.meta, parentPage)
		if err != nil {
			return err
		}
		if parent.RightChild() == childPage {
			childPage = parent.Page()
			parentPage = parent.Parent()
			continue
		}
		if parent.UpdateKeyForChild(childPage, newKey) {
			return nil
		}
		return dberr.Invariant("max-key propagation: child not referenced by parent")
	}
	return nil
}

// collapseEmptyLeaf handles a leaf that lost its last cell: an empty
// root resets to an empty leaf in place; otherwise the leaf is unlinked
// from the sibling chain, removed from its parent, and returned to the
// pager, possibly cascading into a unary-internal collapse.
func (t *BTree) collapseEmptyLeaf(leaf *Leaf) error {
	if leaf.IsRoot() {
		formatEmptyLeaf(leaf.page, true, 0)
		t.meta.Log.Debug("btree: tree emptied, root reset")
		return nil
	}

	pred, err := t.findPredecessorLeaf(leaf.Page())
	if err != nil {
		return err
	}
	next := leaf.NextLeaf()
	if pred != nil {
		pred.SetNextLeaf(next)
	}

	parentPage := leaf.Parent()
	leafPage := leaf.Page()
	if err := t.meta.Pager.ReturnPage(leafPage); err != nil {
		return err
	}
	return t.removeChildAndCollapse(parentPage, leafPage)
}

// findPredecessorLeaf scans the sibling chain from the leftmost leaf to
// find the leaf whose next_leaf points at target. The chain is
// singly-linked, so this is O(leaf count); it only runs when a leaf is
// emptied entirely or split, never on find or on an insert that fits
// in its leaf.
func (t *BTree) findPredecessorLeaf(target uint32) (*Leaf, error) {
	cur, err := t.firstLeafPage()
	if err != nil {
		return nil, err
	}
	if cur == target {
		return nil, nil
	}
	for {
		leaf, err := loadLeaf(t.meta, cur)
		if err != nil {
			return nil, err
		}
		if leaf.NextLeaf() == target {
			return leaf, nil
		}
		if leaf.NextLeaf() == 0 {
			return nil, dberr.Invariant("leaf sibling chain does not reach target")
		}
		cur = leaf.NextLeaf()
	}
}

// removeChildAndCollapse removes childPage's cell from parentPage and,
// if that leaves the parent unary (0 keys, a bare right_child), collapses
// it: the root case folds the sole child's content into the permanent
// root page; the non-root case splices the sole child directly into the
// grandparent in the parent's place.
func (t *BTree) removeChildAndCollapse(parentPage, childPage uint32) error {
	parent, err := loadInternal(t.meta, parentPage)
	if err != nil {
		return err
	}
	if err := parent.RemoveChild(childPage); err != nil {
		return err
	}
	if parent.NumKeys() > 0 {
		return nil
	}

	if parent.IsRoot() {
		return t.collapseRootToChild(parent)
	}

	grandparent := parent.Parent()
	only := parent.RightChild()
	if err := t.relinkOnlyChild(parent.Page(), only, grandparent); err != nil {
		return err
	}
	return t.meta.Pager.ReturnPage(parent.Page())
}

// collapseRootToChild handles a unary root: its single child's content is
// copied into the root's permanent page, any grandchildren are
// reparented to the root's (unchanged) page number, and the child's own
// page is freed.
func (t *BTree) collapseRootToChild(root *Internal) error {
	onlyChild := root.RightChild()
	childPage, typ, err := loadNodeType(t.meta, onlyChild)
	if err != nil {
		return err
	}

	rootPage := root.page
	copy(rootPage.Data, childPage.Data)
	setIsRoot(rootPage, true)
	setParentPage(rootPage, 0)
	rootPage.Dirty = true

	if typ == nodeTypeInternal {
		in := &Internal{meta: t.meta, page: rootPage}
		if err := reparentChildren(t.meta, in.children(), t.root); err != nil {
			return err
		}
	}

	t.meta.Log.WithField("root", t.root).Debug("btree: tree height decreased")
	return t.meta.Pager.ReturnPage(onlyChild)
}

// relinkOnlyChild reparents onlyChild to grandparentPage and replaces
// the (now-removed) oldParent's slot there with onlyChild directly.
func (t *BTree) relinkOnlyChild(oldParent, onlyChild, grandparentPage uint32) error {
	if grandparentPage == 0 {
		return dberr.Invariant("unary collapse of non-root parent with no grandparent")
	}
	page, err := t.meta.Pager.GetPage(onlyChild)
	if err != nil {
		return err
	}
	setParentPage(page, grandparentPage)
	page.Dirty = true

	grandparent, err := loadInternal(t.meta, grandparentPage)
	if err != nil {
		return err
	}
	if !grandparent.ReplaceChild(oldParent, onlyChild) {
		return dberr.Invariant("unary collapse: old parent not referenced by grandparent")
	}
	return nil
}

// Validate walks the whole tree checking every invariant in §3 plus the
// per-node checks in §4.3.5.
func (t *BTree) Validate() error {
	return validateTree(t.meta, t.root)
}
