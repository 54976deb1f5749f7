package btree

import (
	"learndb/internal/dberr"
)

// validateTree walks the whole tree from root, checking every invariant
// in §3 that's scoped to a single tree: unique ascending keys, non-root
// node cell-count floors, next_leaf chain correctness, leaf free-space
// accounting, internal separator bounds, and parent-pointer consistency.
// Invariant 7 (free-page-list disjointness) spans every tree sharing the
// pager plus the catalog, so it's checked one level up, in db.go.
func validateTree(m *Meta, root uint32) error {
	v := &validator{meta: m}
	if _, _, err := v.walk(root, true, nil, nil); err != nil {
		return err
	}
	return v.checkLeafChain(root)
}

type validator struct {
	meta    *Meta
	lastKey *int32
}

// walk descends into page, enforcing that every key under it falls
// within (lowExclusive, highInclusive] when non-nil, and that keys seen
// across the whole traversal strictly increase (covering invariants 1
// and 2 at once). It returns the subtree's min and max key.
func (v *validator) walk(page uint32, root bool, lowExclusive, highInclusive *int32) (int32, int32, error) {
	p, typ, err := loadNodeType(v.meta, page)
	if err != nil {
		return 0, 0, err
	}
	if !root && parentPage(p) == 0 {
		return 0, 0, dberr.Invariant("non-root node has no parent pointer")
	}

	switch typ {
	case nodeTypeLeaf:
		return v.walkLeaf(&Leaf{meta: v.meta, page: p}, root, lowExclusive, highInclusive)
	case nodeTypeInternal:
		return v.walkInternal(&Internal{meta: v.meta, page: p}, root, lowExclusive, highInclusive)
	default:
		return 0, 0, dberr.Invariant("unrecognized node type during validation")
	}
}

func (v *validator) walkLeaf(leaf *Leaf, root bool, lowExclusive, highInclusive *int32) (int32, int32, error) {
	n := int(leaf.NumCells())
	if !root && n == 0 {
		return 0, 0, dberr.Invariant("non-root leaf has zero cells")
	}
	if n == 0 {
		return 0, 0, nil
	}

	var prev *int32
	for i := 0; i < n; i++ {
		key := leaf.KeyAt(i)
		if prev != nil && key <= *prev {
			return 0, 0, dberr.Invariant("leaf cell-pointer array is not strictly ascending by key")
		}
		if lowExclusive != nil && key <= *lowExclusive {
			return 0, 0, dberr.Invariant("leaf key violates parent's lower separator bound")
		}
		if highInclusive != nil && key > *highInclusive {
			return 0, 0, dberr.Invariant("leaf key violates parent's upper separator bound")
		}
		if v.lastKey != nil && key <= *v.lastKey {
			return 0, 0, dberr.Invariant("keys are not strictly ascending across the whole tree")
		}
		v.lastKey = &key
		prev = &key
	}

	if err := v.checkLeafSpaceAccounting(leaf); err != nil {
		return 0, 0, err
	}

	return leaf.KeyAt(0), leaf.KeyAt(n - 1), nil
}

// checkLeafSpaceAccounting verifies no two cells overlap and that the
// tracked free list plus the contiguous allocation gap never exceeds the
// page's total space for cells (it can be strictly less, since a
// sub-MIN_FREE_BLOCK residual from a free-list carve is deliberately
// left untracked per §4.3.2 step 3 rather than folded back in).
func (v *validator) checkLeafSpaceAccounting(leaf *Leaf) error {
	n := int(leaf.NumCells())
	type span struct{ start, end uint32 }
	spans := make([]span, n)
	liveBytes := uint32(0)
	for i := 0; i < n; i++ {
		off := leaf.cellPtr(i)
		size := uint32(len(leaf.CellAt(i)))
		spans[i] = span{off, off + size}
		liveBytes += size
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				return dberr.Invariant("leaf has overlapping cell regions")
			}
		}
	}

	cellPtrEnd := leaf.cellPtrArrayEnd()
	if leaf.AllocPtr() < cellPtrEnd {
		return dberr.Invariant("leaf alloc_ptr overruns the cell-pointer array")
	}
	available := leaf.pageSize() - cellPtrEnd
	accounted := liveBytes + leaf.TotalFreeBytes() + leaf.allocSpace()
	if accounted > available {
		return dberr.Invariant("leaf free-space accounting exceeds the page's total cell space")
	}
	return nil
}

func (v *validator) walkInternal(in *Internal, root bool, lowExclusive, highInclusive *int32) (int32, int32, error) {
	n := int(in.NumKeys())
	if n == 0 {
		return 0, 0, dberr.Invariant("internal node has zero keys")
	}

	var minKey int32
	lower := lowExclusive
	for i := 0; i < n; i++ {
		key := in.KeyAt(i)
		if i > 0 && key <= in.KeyAt(i-1) {
			return 0, 0, dberr.Invariant("internal separator keys are not strictly ascending")
		}
		if highInclusive != nil && key > *highInclusive {
			return 0, 0, dberr.Invariant("internal separator exceeds parent's upper bound")
		}
		childLo, _, err := v.walk(in.ChildAt(i), false, lower, &key)
		if err != nil {
			return 0, 0, err
		}
		if i == 0 {
			minKey = childLo
		}
		lower = &key
	}

	_, maxKey, err := v.walk(in.RightChild(), false, lower, highInclusive)
	if err != nil {
		return 0, 0, err
	}

	return minKey, maxKey, nil
}

// checkLeafChain walks the next_leaf sibling chain from the leftmost
// leaf and verifies it visits every leaf reachable from root, in
// strictly ascending order, terminating at 0 (invariant 4).
func (v *validator) checkLeafChain(root uint32) error {
	leaves, err := collectLeaves(v.meta, root)
	if err != nil {
		return err
	}

	tree := &BTree{meta: v.meta, root: root}
	cur, err := tree.firstLeafPage()
	if err != nil {
		return err
	}

	visited := make(map[uint32]bool, len(leaves))
	var prevMax *int32
	for cur != 0 {
		if visited[cur] {
			return dberr.Invariant("leaf sibling chain contains a cycle")
		}
		visited[cur] = true
		leaf, err := loadLeaf(v.meta, cur)
		if err != nil {
			return err
		}
		if n := leaf.NumCells(); n > 0 {
			first := leaf.KeyAt(0)
			if prevMax != nil && first <= *prevMax {
				return dberr.Invariant("leaf sibling chain is not in ascending key order")
			}
			last := leaf.KeyAt(int(n) - 1)
			prevMax = &last
		}
		cur = leaf.NextLeaf()
	}

	if len(visited) != len(leaves) {
		return dberr.Invariant("leaf sibling chain does not cover every leaf reachable from root")
	}
	for pg := range leaves {
		if !visited[pg] {
			return dberr.Invariant("leaf sibling chain omits a leaf reachable from root")
		}
	}
	return nil
}

func collectLeaves(m *Meta, page uint32) (map[uint32]bool, error) {
	out := make(map[uint32]bool)
	if err := collectLeavesInto(m, page, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectLeavesInto(m *Meta, page uint32, out map[uint32]bool) error {
	p, typ, err := loadNodeType(m, page)
	if err != nil {
		return err
	}
	if typ == nodeTypeLeaf {
		out[page] = true
		return nil
	}
	in := &Internal{meta: m, page: p}
	for i := 0; i < int(in.NumKeys()); i++ {
		if err := collectLeavesInto(m, in.ChildAt(i), out); err != nil {
			return err
		}
	}
	return collectLeavesInto(m, in.RightChild(), out)
}

// CollectLivePages returns every page belonging to the tree rooted at
// root (leaves and internal nodes alike), used by db.go to check
// invariant 7 across every tree sharing the pager.
func CollectLivePages(m *Meta, root uint32) (map[uint32]bool, error) {
	out := make(map[uint32]bool)
	if err := collectLivePagesInto(m, root, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectLivePagesInto(m *Meta, page uint32, out map[uint32]bool) error {
	out[page] = true
	p, typ, err := loadNodeType(m, page)
	if err != nil {
		return err
	}
	if typ == nodeTypeLeaf {
		return nil
	}
	in := &Internal{meta: m, page: p}
	for i := 0; i < int(in.NumKeys()); i++ {
		if err := collectLivePagesInto(m, in.ChildAt(i), out); err != nil {
			return err
		}
	}
	return collectLivePagesInto(m, in.RightChild(), out)
}
