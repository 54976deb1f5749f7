package btree

import (
	"sort"

	"learndb/internal/dberr"
	"learndb/internal/pager"
)

// Internal is a read/write view over an internal page. Cells are packed
// fixed-size [childPage:4|key:4] entries directly after the header (no
// pointer indirection, unlike leaves): cell i's child covers every key
// <= cell i's key, and right_child covers everything above the last
// cell's key.
type Internal struct {
	meta *Meta
	page *pager.Page
}

func loadInternal(m *Meta, n uint32) (*Internal, error) {
	page, t, err := loadNodeType(m, n)
	if err != nil {
		return nil, err
	}
	if t != nodeTypeInternal {
		return nil, dberr.Corrupt("expected internal page")
	}
	return &Internal{meta: m, page: page}, nil
}

func newInternal(m *Meta, root bool, parent, rightChild uint32) (*Internal, error) {
	pgno, err := m.Pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	page, err := m.Pager.GetPage(pgno)
	if err != nil {
		return nil, err
	}
	formatEmptyInternal(page, root, parent, rightChild)
	return &Internal{meta: m, page: page}, nil
}

func (in *Internal) Page() uint32       { return in.page.PageNum }
func (in *Internal) IsRoot() bool       { return isRoot(in.page) }
func (in *Internal) SetRoot(v bool)     { setIsRoot(in.page, v); in.page.Dirty = true }
func (in *Internal) Parent() uint32     { return parentPage(in.page) }
func (in *Internal) SetParent(n uint32) { setParentPage(in.page, n); in.page.Dirty = true }

func (in *Internal) maxCells() int {
	return (len(in.page.Data) - internalHeaderSize) / internalCellSize
}

func (in *Internal) NumKeys() uint32 {
	return in.page.U32(internalNumKeysOff)
}
func (in *Internal) setNumKeys(v uint32) {
	in.page.SetU32(internalNumKeysOff, v)
}
func (in *Internal) RightChild() uint32 {
	return in.page.U32(internalRightChildOff)
}
func (in *Internal) SetRightChild(v uint32) {
	in.page.SetU32(internalRightChildOff, v)
}

func (in *Internal) cellOffset(i int) uint32 {
	return internalHeaderSize + uint32(i)*internalCellSize
}
func (in *Internal) ChildAt(i int) uint32 {
	return in.page.U32(in.cellOffset(i))
}
func (in *Internal) KeyAt(i int) int32 {
	return int32(in.page.U32(in.cellOffset(i) + 4))
}
func (in *Internal) setChildAt(i int, v uint32) {
	in.page.SetU32(in.cellOffset(i), v)
}
func (in *Internal) setKeyAt(i int, v int32) {
	in.page.SetU32(in.cellOffset(i)+4, uint32(v))
}

// ChildFor returns the child page to descend into for key.
func (in *Internal) ChildFor(key int32) uint32 {
	n := int(in.NumKeys())
	idx := sort.Search(n, func(i int) bool { return in.KeyAt(i) >= key })
	if idx == n {
		return in.RightChild()
	}
	return in.ChildAt(idx)
}

func (in *Internal) childIndex(childPage uint32) int {
	n := int(in.NumKeys())
	for i := 0; i < n; i++ {
		if in.ChildAt(i) == childPage {
			return i
		}
	}
	return -1
}

func (in *Internal) children() []uint32 {
	n := int(in.NumKeys())
	out := make([]uint32, n+1)
	for i := 0; i < n; i++ {
		out[i] = in.ChildAt(i)
	}
	out[n] = in.RightChild()
	return out
}

func (in *Internal) keys() []int32 {
	n := int(in.NumKeys())
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = in.KeyAt(i)
	}
	return out
}

// internalSplitOutcome mirrors splitOutcome for internal node splits:
// promotedKey is removed from both children and propagated to the
// grandparent, unlike a leaf split's splitKey which stays in the left
// sibling.
type internalSplitOutcome struct {
	left, right uint32
	promotedKey int32
}

// InsertChildSplit records that oldChild split into (leftChild,
// rightChild) separated by splitKey, updating this node's cell array
// accordingly. If the node is full it splits itself and returns a
// non-nil outcome for the caller to propagate further up.
func (in *Internal) InsertChildSplit(oldChild, leftChild, rightChild uint32, splitKey int32) (*internalSplitOutcome, error) {
	children := in.children()
	keys := in.keys()

	idx := -1
	for i, c := range children {
		if c == oldChild {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, dberr.Invariant("child split from a page not referenced by its parent")
	}

	newChildren := make([]uint32, 0, len(children)+1)
	newChildren = append(newChildren, children[:idx]...)
	newChildren = append(newChildren, leftChild, rightChild)
	newChildren = append(newChildren, children[idx+1:]...)

	newKeys := make([]int32, 0, len(keys)+1)
	newKeys = append(newKeys, keys[:idx]...)
	newKeys = append(newKeys, splitKey)
	newKeys = append(newKeys, keys[idx:]...)

	if len(newKeys) <= in.maxCells() {
		in.layoutAll(newChildren, newKeys)
		return nil, nil
	}
	return in.splitWith(newChildren, newKeys)
}

// layoutAll rewrites this node's cells and right_child from children/keys
// (len(children) == len(keys)+1), in place.
func (in *Internal) layoutAll(children []uint32, keys []int32) {
	n := len(keys)
	in.setNumKeys(uint32(n))
	for i := 0; i < n; i++ {
		in.setChildAt(i, children[i])
		in.setKeyAt(i, keys[i])
	}
	in.SetRightChild(children[n])
	in.page.Dirty = true
}

// splitWith divides an oversized (children, keys) set across two fresh
// internal pages, promoting the middle key to the caller rather than
// keeping it in either child.
func (in *Internal) splitWith(children []uint32, keys []int32) (*internalSplitOutcome, error) {
	mid := len(keys) / 2
	promoted := keys[mid]

	leftChildren, leftKeys := children[:mid+1], keys[:mid]
	rightChildren, rightKeys := children[mid+1:], keys[mid+1:]

	parent := in.Parent()
	left, err := newInternal(in.meta, false, parent, leftChildren[len(leftChildren)-1])
	if err != nil {
		return nil, err
	}
	right, err := newInternal(in.meta, false, parent, rightChildren[len(rightChildren)-1])
	if err != nil {
		return nil, err
	}
	left.layoutAll(leftChildren, leftKeys)
	right.layoutAll(rightChildren, rightKeys)

	if err := reparentChildren(in.meta, leftChildren, left.Page()); err != nil {
		return nil, err
	}
	if err := reparentChildren(in.meta, rightChildren, right.Page()); err != nil {
		return nil, err
	}

	oldPage := in.Page()
	if err := in.meta.Pager.ReturnPage(oldPage); err != nil {
		return nil, err
	}

	in.meta.Log.WithFields(map[string]interface{}{
		"old": oldPage, "left": left.Page(), "right": right.Page(),
	}).Debug("btree: internal split")

	return &internalSplitOutcome{left: left.Page(), right: right.Page(), promotedKey: promoted}, nil
}

// reparentChildren updates the parent pointer stored on each child page
// to newParent, needed whenever children are redistributed across a
// freshly split internal node.
func reparentChildren(m *Meta, children []uint32, newParent uint32) error {
	for _, c := range children {
		page, err := m.Pager.GetPage(c)
		if err != nil {
			return err
		}
		setParentPage(page, newParent)
		page.Dirty = true
	}
	return nil
}

// RemoveChild deletes the cell referencing childPage (or, if childPage
// is the right child, folds the preceding cell's child into right_child
// instead), used during delete-side structural repair when a child
// collapses to nothing.
func (in *Internal) RemoveChild(childPage uint32) error {
	children := in.children()
	keys := in.keys()

	idx := -1
	for i, c := range children {
		if c == childPage {
			idx = i
			break
		}
	}
	if idx == -1 {
		return dberr.Invariant("remove-child target not found in parent")
	}

	newChildren := append(append([]uint32{}, children[:idx]...), children[idx+1:]...)
	var newKeys []int32
	if idx == len(keys) {
		newKeys = append([]int32{}, keys[:idx-1]...)
	} else if idx == 0 {
		newKeys = append([]int32{}, keys[1:]...)
	} else {
		newKeys = append(append([]int32{}, keys[:idx]...), keys[idx+1:]...)
	}
	in.layoutAll(newChildren, newKeys)
	return nil
}

// LastSeparatorKey returns the node's last separator key, or false when
// the node has no keys.
func (in *Internal) LastSeparatorKey() (int32, bool) {
	n := int(in.NumKeys())
	if n == 0 {
		return 0, false
	}
	return in.KeyAt(n - 1), true
}

// UpdateKeyForChild rewrites the separator key bounding childPage (used
// when a max-key changes beneath a non-rightmost child after a delete).
func (in *Internal) UpdateKeyForChild(childPage uint32, newKey int32) bool {
	idx := in.childIndex(childPage)
	if idx == -1 {
		return false
	}
	in.setKeyAt(idx, newKey)
	in.page.Dirty = true
	return true
}

// ReplaceChild swaps oldChild for newChild wherever it's referenced
// (array cell or right_child) without touching any separator key, used
// when a unary internal node collapses and its sole child takes its
// place in the grandparent.
func (in *Internal) ReplaceChild(oldChild, newChild uint32) bool {
	if in.RightChild() == oldChild {
		in.SetRightChild(newChild)
		return true
	}
	idx := in.childIndex(oldChild)
	if idx == -1 {
		return false
	}
	in.setChildAt(idx, newChild)
	in.page.Dirty = true
	return true
}
