package bplustree

import (
	"fmt"

	"corestore/internal/buffer"
	"corestore/internal/catalog"
	"corestore/internal/txn"
	"corestore/internal/types"
)

// Tree is a named disk-resident B+Tree index: search, insert, and
// delete-with-rebalance over pages fetched through a buffer pool, with
// its root page id persisted in the store's header page. Ported from
// bustub's storage/index/b_plus_tree.cpp.
type Tree struct {
	name            string
	pool            *buffer.PoolManager
	header          *catalog.Header
	leafMaxSize     int
	internalMaxSize int
	rootPageID      int64
}

// Open attaches to (or creates) the named index. If the header page has
// no record for name yet, the tree starts empty and registers itself on
// the first insert.
func Open(name string, pool *buffer.PoolManager, header *catalog.Header, leafMaxSize, internalMaxSize int) *Tree {
	rootPageID := types.InvalidPageID
	if id, ok := header.FindRecord(name); ok {
		rootPageID = id
	}
	return &Tree{
		name:            name,
		pool:            pool,
		header:          header,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      rootPageID,
	}
}

// IsEmpty reports whether the tree currently has no root.
func (t *Tree) IsEmpty() bool { return t.rootPageID == types.InvalidPageID }

// RootPageID returns the tree's current root page id.
func (t *Tree) RootPageID() int64 { return t.rootPageID }

// fetchLeaf and fetchInternal, and putLeaf/putInternal below, are each
// fully self-contained fetch-decode-unpin / fetch-encode-unpin pairs: no
// pin is ever held across a call boundary. A decoded page is a detached
// value the caller mutates freely in memory; any mutation only reaches
// disk once it's handed to putLeaf/putInternal explicitly.
func (t *Tree) fetchLeaf(pageID int64) (*LeafPage, error) {
	pg, err := t.pool.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	pg.RLock()
	l, err := DecodeLeaf(pg.Data)
	pg.RUnlock()
	t.pool.UnpinPage(pageID, false)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (t *Tree) fetchInternal(pageID int64) (*InternalPage, error) {
	pg, err := t.pool.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	pg.RLock()
	n, err := DecodeInternal(pg.Data)
	pg.RUnlock()
	t.pool.UnpinPage(pageID, false)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree) putLeaf(l *LeafPage) error {
	pg, err := t.pool.FetchPage(l.PageID)
	if err != nil {
		return err
	}
	pg.Lock()
	err = EncodeLeaf(l, pg.Data)
	pg.Unlock()
	t.pool.UnpinPage(l.PageID, true)
	return err
}

func (t *Tree) putInternal(n *InternalPage) error {
	pg, err := t.pool.FetchPage(n.PageID)
	if err != nil {
		return err
	}
	pg.Lock()
	err = EncodeInternal(n, pg.Data)
	pg.Unlock()
	t.pool.UnpinPage(n.PageID, true)
	return err
}

// pageType peeks at a page's type without decoding its whole body.
func (t *Tree) pageType(pageID int64) (types.PageType, error) {
	pg, err := t.pool.FetchPage(pageID)
	if err != nil {
		return types.PageTypeUnknown, err
	}
	pg.RLock()
	pt := DecodePageType(pg.Data)
	pg.RUnlock()
	t.pool.UnpinPage(pageID, false)
	return pt, nil
}

// findLeaf descends from the root to the leaf that would contain key.
func (t *Tree) findLeaf(key int64) (*LeafPage, error) {
	pageID := t.rootPageID
	for {
		pt, err := t.pageType(pageID)
		if err != nil {
			return nil, err
		}
		if pt == types.PageTypeBPlusLeaf {
			return t.fetchLeaf(pageID)
		}
		n, err := t.fetchInternal(pageID)
		if err != nil {
			return nil, err
		}
		pageID = n.Search(key)
	}
}

// Get returns the RID stored for key, if any.
func (t *Tree) Get(key int64) (RID, bool, error) {
	if t.IsEmpty() {
		return RID{}, false, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return RID{}, false, err
	}
	rid, ok := leaf.Find(key)
	return rid, ok, nil
}

// Insert adds (key, value). Returns false if key already exists.
func (t *Tree) Insert(key int64, value RID) (bool, error) {
	if t.IsEmpty() {
		return true, t.startNewTree(key, value)
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	if !leaf.Insert(key, value) {
		return false, nil
	}

	if leaf.Size() < t.leafMaxSize {
		return true, t.putLeaf(leaf)
	}

	newPageID, err := t.allocatePage(types.PageTypeBPlusLeaf)
	if err != nil {
		return false, err
	}
	right := leaf.SplitOff(newPageID)
	right.NextID = leaf.NextID
	leaf.NextID = right.PageID
	risenKey := right.Keys[0]

	if err := t.insertRisenKeyToParent(risenKey, leaf.PageID, leaf.ParentID, right.PageID,
		func(newParent int64) { right.ParentID = newParent },
		func(newParent int64) { leaf.ParentID = newParent }); err != nil {
		return false, err
	}
	if err := t.putLeaf(right); err != nil {
		return false, err
	}
	return true, t.putLeaf(leaf)
}

func (t *Tree) startNewTree(key int64, value RID) error {
	pageID, err := t.allocatePage(types.PageTypeBPlusLeaf)
	if err != nil {
		return err
	}
	leaf := newLeaf(pageID, types.InvalidPageID, t.leafMaxSize)
	leaf.Insert(key, value)
	t.rootPageID = pageID
	if err := t.putLeaf(leaf); err != nil {
		return err
	}
	return t.persistRoot(true)
}

// allocatePage gets a fresh page from the buffer pool, stamps its type
// (an empty page of that type carrying its own id), and unpins it (the
// caller will re-fetch and encode real content).
func (t *Tree) allocatePage(pt types.PageType) (int64, error) {
	pg, err := t.pool.NewPage()
	if err != nil {
		return types.InvalidPageID, fmt.Errorf("bplustree: failed to allocate page: %w", err)
	}
	id := pg.ID
	pg.Lock()
	if pt == types.PageTypeBPlusInternal {
		err = EncodeInternal(newInternal(id, types.InvalidPageID, t.internalMaxSize), pg.Data)
	} else {
		err = EncodeLeaf(newLeaf(id, types.InvalidPageID, t.leafMaxSize), pg.Data)
	}
	pg.Unlock()
	t.pool.UnpinPage(id, true)
	if err != nil {
		return types.InvalidPageID, err
	}
	return id, nil
}

// insertRisenKeyToParent inserts (risenKey -> childID) into origin's
// parent, splitting the parent (recursively, up to a new root) if it
// overflows. setChildParent and setOriginParent let the caller — who
// still holds the in-memory page structs for childID and originID and
// will persist them afterwards — learn what their new parent ids ended
// up being: a new root becomes the parent of both, and a parent split
// can move either of them into the new right sibling. The callbacks
// update the caller's in-memory copies, so the caller's own later put
// carries the new parent id instead of clobbering it with a stale one.
func (t *Tree) insertRisenKeyToParent(risenKey int64, originID int64, parentID int64, childID int64, setChildParent func(newParent int64), setOriginParent func(newParent int64)) error {
	if parentID == types.InvalidPageID {
		newRootID, err := t.allocatePage(types.PageTypeBPlusInternal)
		if err != nil {
			return err
		}
		root := newInternal(newRootID, types.InvalidPageID, t.internalMaxSize)
		root.InitRoot(originID, childID, risenKey)
		setChildParent(newRootID)
		setOriginParent(newRootID)
		t.rootPageID = newRootID
		if err := t.putInternal(root); err != nil {
			return err
		}
		return t.persistRoot(false)
	}

	parent, err := t.fetchInternal(parentID)
	if err != nil {
		return err
	}

	if parent.Size() < t.internalMaxSize {
		parent.Insert(risenKey, childID)
		setChildParent(parent.PageID)
		return t.putInternal(parent)
	}

	newPageID, err := t.allocatePage(types.PageTypeBPlusInternal)
	if err != nil {
		return err
	}
	right, parentRisenKey := parent.SplitOff(newPageID, risenKey, childID)
	if pos := right.ValuePosition(childID); pos >= 0 {
		setChildParent(right.PageID)
	} else {
		setChildParent(parent.PageID)
	}
	if right.ValuePosition(originID) >= 0 {
		setOriginParent(right.PageID)
	}

	for _, cid := range right.Children {
		if err := t.setParentByID(cid, right.PageID); err != nil {
			return err
		}
	}

	if err := t.insertRisenKeyToParent(parentRisenKey, parent.PageID, parent.ParentID, right.PageID,
		func(newParent int64) { right.ParentID = newParent },
		func(newParent int64) { parent.ParentID = newParent }); err != nil {
		return err
	}
	if err := t.putInternal(right); err != nil {
		return err
	}
	return t.putInternal(parent)
}

func (t *Tree) setParentByID(pageID, parentID int64) error {
	pt, err := t.pageType(pageID)
	if err != nil {
		return err
	}
	if pt == types.PageTypeBPlusLeaf {
		l, err := t.fetchLeaf(pageID)
		if err != nil {
			return err
		}
		l.ParentID = parentID
		return t.putLeaf(l)
	}
	n, err := t.fetchInternal(pageID)
	if err != nil {
		return err
	}
	n.ParentID = parentID
	return t.putInternal(n)
}

func (t *Tree) persistRoot(insert bool) error {
	if insert {
		return t.header.InsertRecord(t.name, t.rootPageID)
	}
	return t.header.UpdateRecord(t.name, t.rootPageID)
}

// Delete removes key, rebalancing the tree if the owning leaf
// underflows. Pages freed during rebalancing are queued on transaction
// and physically deleted from the pool once the top-level operation
// finishes.
func (t *Tree) Delete(key int64, transaction *txn.Transaction) error {
	if t.IsEmpty() {
		return nil
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	if !leaf.Remove(key) {
		return nil
	}

	if err := t.rebalanceLeaf(leaf, transaction); err != nil {
		return err
	}

	for _, id := range transaction.DeletedPageSet() {
		if _, err := t.pool.DeletePage(id); err != nil {
			return err
		}
	}
	transaction.Clear()
	return nil
}

func (t *Tree) rebalanceLeaf(leaf *LeafPage, transaction *txn.Transaction) error {
	if leaf.IsRoot() {
		if leaf.Size() == 0 {
			transaction.AddDeletedPage(leaf.PageID)
			t.rootPageID = types.InvalidPageID
			return t.persistRoot(false)
		}
		return t.putLeaf(leaf)
	}

	if leaf.Size() >= leaf.MinSize() {
		return t.putLeaf(leaf)
	}

	parent, err := t.fetchInternal(leaf.ParentID)
	if err != nil {
		return err
	}
	pos := parent.ValuePosition(leaf.PageID)
	if parent.Size() <= 1 {
		return fmt.Errorf("bplustree: internal invariant violated: parent has only one child")
	}
	prevSibling := true
	siblingPos := pos - 1
	if pos == 0 {
		prevSibling = false
		siblingPos = pos + 1
	}

	sibling, err := t.fetchLeaf(parent.Children[siblingPos])
	if err != nil {
		return err
	}

	if sibling.Size() > sibling.MinSize() {
		if prevSibling {
			sibling.MoveRearToFrontOf(leaf)
			parent.Keys[pos] = leaf.Keys[0]
		} else {
			sibling.MoveFrontToRearOf(leaf)
			parent.Keys[siblingPos] = sibling.Keys[0]
		}
		if err := t.putLeaf(leaf); err != nil {
			return err
		}
		if err := t.putLeaf(sibling); err != nil {
			return err
		}
		return t.putInternal(parent)
	}

	if prevSibling {
		leaf.MoveAllTo(sibling)
		parent.Remove(pos)
		transaction.AddDeletedPage(leaf.PageID)
		if err := t.putLeaf(sibling); err != nil {
			return err
		}
	} else {
		sibling.MoveAllTo(leaf)
		parent.Remove(siblingPos)
		transaction.AddDeletedPage(sibling.PageID)
		if err := t.putLeaf(leaf); err != nil {
			return err
		}
	}

	return t.rebalanceInternal(parent, transaction)
}

func (t *Tree) rebalanceInternal(node *InternalPage, transaction *txn.Transaction) error {
	if node.IsRoot() && node.Size() == 1 {
		onlyChild := node.Children[0]
		if err := t.setParentByID(onlyChild, types.InvalidPageID); err != nil {
			return err
		}
		t.rootPageID = onlyChild
		transaction.AddDeletedPage(node.PageID)
		return t.persistRoot(false)
	}

	if node.IsRoot() || node.Size() >= node.MinSize() {
		return t.putInternal(node)
	}

	parent, err := t.fetchInternal(node.ParentID)
	if err != nil {
		return err
	}
	pos := parent.ValuePosition(node.PageID)
	if parent.Size() <= 1 {
		return fmt.Errorf("bplustree: internal invariant violated: parent has only one child")
	}
	prevSibling := true
	siblingPos := pos - 1
	if pos == 0 {
		prevSibling = false
		siblingPos = pos + 1
	}

	sibling, err := t.fetchInternal(parent.Children[siblingPos])
	if err != nil {
		return err
	}

	if sibling.Size() > sibling.MinSize() {
		if prevSibling {
			sibling.MoveRearToFrontOf(node, parent.Keys[pos])
			parent.Keys[pos] = node.Keys[0]
			if err := t.setParentByID(node.Children[0], node.PageID); err != nil {
				return err
			}
		} else {
			sibling.MoveFrontToRearOf(node, parent.Keys[siblingPos])
			parent.Keys[siblingPos] = sibling.Keys[0]
			if err := t.setParentByID(node.Children[len(node.Children)-1], node.PageID); err != nil {
				return err
			}
		}
		if err := t.putInternal(node); err != nil {
			return err
		}
		if err := t.putInternal(sibling); err != nil {
			return err
		}
		return t.putInternal(parent)
	}

	if prevSibling {
		oldSize := sibling.Size()
		node.MoveAllTo(sibling, parent.Keys[pos])
		for i := oldSize; i < sibling.Size(); i++ {
			if err := t.setParentByID(sibling.Children[i], sibling.PageID); err != nil {
				return err
			}
		}
		parent.Remove(pos)
		transaction.AddDeletedPage(node.PageID)
		if err := t.putInternal(sibling); err != nil {
			return err
		}
	} else {
		oldSize := node.Size()
		sibling.MoveAllTo(node, parent.Keys[siblingPos])
		for i := oldSize; i < node.Size(); i++ {
			if err := t.setParentByID(node.Children[i], node.PageID); err != nil {
				return err
			}
		}
		parent.Remove(siblingPos)
		transaction.AddDeletedPage(sibling.PageID)
		if err := t.putInternal(node); err != nil {
			return err
		}
	}

	return t.rebalanceInternal(parent, transaction)
}
