package bplustree

import (
	"corestore/internal/types"
)

// Iterator is a forward cursor over a leaf's linked list, holding one
// decoded leaf page at a time (a detached copy, not a pinned frame — see
// fetchLeaf). Ported from bustub's storage/index/index_iterator.cpp —
// unlike the source (which the design notes flag as an unimplemented
// stub returning default values), Begin/BeginAt/End are fully
// implemented here.
type Iterator struct {
	tree   *Tree
	leaf   *LeafPage
	offset int
	atEnd  bool
}

// Begin returns an iterator positioned at the leftmost leaf's first
// entry.
func (t *Tree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, atEnd: true}, nil
	}
	pageID := t.rootPageID
	for {
		pt, err := t.pageType(pageID)
		if err != nil {
			return nil, err
		}
		if pt == types.PageTypeBPlusLeaf {
			leaf, err := t.fetchLeaf(pageID)
			if err != nil {
				return nil, err
			}
			return &Iterator{tree: t, leaf: leaf, offset: 0}, nil
		}
		n, err := t.fetchInternal(pageID)
		if err != nil {
			return nil, err
		}
		pageID = n.Children[0]
	}
}

// BeginAt returns an iterator positioned at key's slot in the leaf that
// would contain it (even if key itself isn't present — in that case the
// iterator points at key's would-be insertion point).
func (t *Tree) BeginAt(key int64) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, atEnd: true}, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	return &Iterator{tree: t, leaf: leaf, offset: leaf.keyPosition(key)}, nil
}

// End reports whether the iterator has been exhausted.
func (it *Iterator) End() bool {
	if it.atEnd {
		return true
	}
	return it.leaf.NextID == types.InvalidPageID && it.offset >= it.leaf.Size()
}

// Key returns the key at the iterator's current position.
func (it *Iterator) Key() int64 { return it.leaf.Keys[it.offset] }

// Value returns the RID at the iterator's current position.
func (it *Iterator) Value() RID { return it.leaf.Values[it.offset] }

// Next advances the iterator, crossing into the next leaf if the
// current one is exhausted.
func (it *Iterator) Next() error {
	it.offset++
	if it.offset < it.leaf.Size() {
		return nil
	}
	if it.leaf.NextID == types.InvalidPageID {
		it.atEnd = true
		return nil
	}
	nextID := it.leaf.NextID
	next, err := it.tree.fetchLeaf(nextID)
	if err != nil {
		return err
	}
	it.leaf = next
	it.offset = 0
	return nil
}

// Close releases the iterator's current leaf. Safe to call more than
// once; fetchLeaf never holds a pin past its own call, so this is just
// bookkeeping to make re-use of a closed iterator fail loudly.
func (it *Iterator) Close() {
	it.leaf = nil
}
