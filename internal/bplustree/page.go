// Package bplustree implements a disk-resident B+Tree index: leaf and
// internal pages backed by buffer-pool frames, tree-level search,
// insert, delete-with-rebalance, and a forward range iterator. Ported
// from bustub's storage/page/b_plus_tree_{leaf,internal}_page.cpp and
// storage/index/b_plus_tree.cpp, restructured around the teacher's
// decode-mutate-encode page convention
// (storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go)
// instead of reinterpreting the page buffer in place.
package bplustree

import (
	"encoding/binary"
	"fmt"

	"corestore/internal/types"
)

// RID is the opaque record identifier a leaf page's value slots hold.
type RID struct {
	PageID int64
	SlotID int32
}

const (
	hdrPageType   = 0 // byte
	hdrSize       = 1 // int16
	hdrMaxSize    = 3 // int16
	hdrPageID     = 5 // int64
	hdrParentID   = 13
	hdrNextID     = 21 // leaf only
	hdrBodyOffset = 29

	leafEntrySize     = 20 // int64 key + int64 RID.PageID + int32 RID.SlotID
	internalEntrySize = 16 // int64 key + int64 child page id
)

// LeafPage is the decoded in-memory form of a leaf page: a sorted
// (key, RID) array plus the next-leaf link.
type LeafPage struct {
	PageID   int64
	ParentID int64
	NextID   int64
	MaxSize  int
	Keys     []int64
	Values   []RID
}

// InternalPage is the decoded in-memory form of an internal page: a
// sorted (key, child page id) array. Keys[0] is never consulted.
type InternalPage struct {
	PageID   int64
	ParentID int64
	MaxSize  int
	Keys     []int64
	Children []int64
}

func newLeaf(pageID, parentID int64, maxSize int) *LeafPage {
	return &LeafPage{PageID: pageID, ParentID: parentID, NextID: types.InvalidPageID, MaxSize: maxSize}
}

func newInternal(pageID, parentID int64, maxSize int) *InternalPage {
	return &InternalPage{PageID: pageID, ParentID: parentID, MaxSize: maxSize}
}

// Size is the number of entries currently in the page.
func (l *LeafPage) Size() int { return len(l.Keys) }
func (n *InternalPage) Size() int { return len(n.Keys) }

// MinSize is ceil(MaxSize/2), the redistribute/coalesce threshold.
func (l *LeafPage) MinSize() int     { return (l.MaxSize + 1) / 2 }
func (n *InternalPage) MinSize() int { return (n.MaxSize + 1) / 2 }

func (l *LeafPage) IsRoot() bool     { return l.ParentID == types.InvalidPageID }
func (n *InternalPage) IsRoot() bool { return n.ParentID == types.InvalidPageID }

// keyPosition returns the index of the first key >= target (leaf
// convention: lower_bound over the whole array).
func (l *LeafPage) keyPosition(key int64) int {
	lo, hi := 0, len(l.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if l.Keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Find returns the value for key, if present.
func (l *LeafPage) Find(key int64) (RID, bool) {
	pos := l.keyPosition(key)
	if pos == len(l.Keys) || l.Keys[pos] != key {
		return RID{}, false
	}
	return l.Values[pos], true
}

// Insert places (key, value) in sorted position. Returns false if key
// already exists (no change made).
func (l *LeafPage) Insert(key int64, value RID) bool {
	pos := l.keyPosition(key)
	if pos < len(l.Keys) && l.Keys[pos] == key {
		return false
	}
	l.Keys = append(l.Keys, 0)
	l.Values = append(l.Values, RID{})
	copy(l.Keys[pos+1:], l.Keys[pos:])
	copy(l.Values[pos+1:], l.Values[pos:])
	l.Keys[pos] = key
	l.Values[pos] = value
	return true
}

// Remove deletes key if present, reporting whether it was found.
func (l *LeafPage) Remove(key int64) bool {
	pos := l.keyPosition(key)
	if pos == len(l.Keys) || l.Keys[pos] != key {
		return false
	}
	l.Keys = append(l.Keys[:pos], l.Keys[pos+1:]...)
	l.Values = append(l.Values[:pos], l.Values[pos+1:]...)
	return true
}

// SplitOff moves the upper half of l's entries into a fresh leaf page
// with the given id, leaving l holding the lower half.
func (l *LeafPage) SplitOff(newPageID int64) *LeafPage {
	idx := l.MinSize()
	right := newLeaf(newPageID, l.ParentID, l.MaxSize)
	right.Keys = append(right.Keys, l.Keys[idx:]...)
	right.Values = append(right.Values, l.Values[idx:]...)
	l.Keys = l.Keys[:idx]
	l.Values = l.Values[:idx]
	return right
}

// MoveRearToFrontOf moves l's last entry to the front of target.
func (l *LeafPage) MoveRearToFrontOf(target *LeafPage) {
	last := len(l.Keys) - 1
	k, v := l.Keys[last], l.Values[last]
	l.Keys = l.Keys[:last]
	l.Values = l.Values[:last]
	target.Keys = append([]int64{k}, target.Keys...)
	target.Values = append([]RID{v}, target.Values...)
}

// MoveFrontToRearOf moves l's first entry to the rear of target.
func (l *LeafPage) MoveFrontToRearOf(target *LeafPage) {
	k, v := l.Keys[0], l.Values[0]
	l.Keys = l.Keys[1:]
	l.Values = l.Values[1:]
	target.Keys = append(target.Keys, k)
	target.Values = append(target.Values, v)
}

// MoveAllTo appends l's entries onto target and links target past l.
func (l *LeafPage) MoveAllTo(target *LeafPage) {
	target.Keys = append(target.Keys, l.Keys...)
	target.Values = append(target.Values, l.Values...)
	target.NextID = l.NextID
	l.Keys, l.Values = nil, nil
}

// --- internal page ---

func (n *InternalPage) keyPosition(key int64) int {
	lo, hi := 1, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Search returns the child page id to descend into for key: the
// greatest slot with key <= target, per the leading-invalid-slot
// convention.
func (n *InternalPage) Search(key int64) int64 {
	pos := n.keyPosition(key)
	if pos == len(n.Keys) {
		return n.Children[len(n.Children)-1]
	}
	if n.Keys[pos] == key {
		return n.Children[pos]
	}
	return n.Children[pos-1]
}

// ValuePosition returns the index of childID among n's children.
func (n *InternalPage) ValuePosition(childID int64) int {
	for i, c := range n.Children {
		if c == childID {
			return i
		}
	}
	return -1
}

// Insert places (key, childID) in sorted position (never at slot 0).
func (n *InternalPage) Insert(key int64, childID int64) {
	pos := n.keyPosition(key)
	n.Keys = append(n.Keys, 0)
	n.Children = append(n.Children, 0)
	copy(n.Keys[pos+1:], n.Keys[pos:])
	copy(n.Children[pos+1:], n.Children[pos:])
	n.Keys[pos] = key
	n.Children[pos] = childID
}

// InitRoot sets n up as a brand-new two-child root: slot 0 has an
// invalid key and leftChild, slot 1 has risenKey and rightChild.
func (n *InternalPage) InitRoot(leftChild, rightChild, risenKey int64) {
	n.Keys = []int64{0, risenKey}
	n.Children = []int64{leftChild, rightChild}
}

// Remove deletes the entry at idx.
func (n *InternalPage) Remove(idx int) {
	n.Keys = append(n.Keys[:idx], n.Keys[idx+1:]...)
	n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
}

// SplitOff splits n after virtually inserting (risenKey, newChild),
// producing a new right sibling with the given page id. Returns the
// new sibling and its first (real) key, the key that rises to the
// parent. Materializes the full maxSize+1 array via the same Insert
// used for the no-split path, then slices it at splitPos, rather than
// special-casing where risenKey lands relative to splitPos: that
// special case duplicated or misplaced whichever child straddled the
// split point.
func (n *InternalPage) SplitOff(newPageID int64, risenKey int64, newChild int64) (*InternalPage, int64) {
	full := &InternalPage{Keys: append([]int64(nil), n.Keys...), Children: append([]int64(nil), n.Children...)}
	full.Insert(risenKey, newChild)

	splitPos := n.MinSize()
	right := newInternal(newPageID, n.ParentID, n.MaxSize)

	n.Keys = append([]int64(nil), full.Keys[:splitPos]...)
	n.Children = append([]int64(nil), full.Children[:splitPos]...)
	right.Keys = append([]int64(nil), full.Keys[splitPos:]...)
	right.Children = append([]int64(nil), full.Children[splitPos:]...)

	risenSeparator := right.Keys[0]
	right.Keys[0] = 0
	return right, risenSeparator
}

// MoveRearToFrontOf moves n's last entry to the front of target,
// rewriting the crossed separator key.
func (n *InternalPage) MoveRearToFrontOf(target *InternalPage, targetRisenKey int64) {
	last := len(n.Keys) - 1
	k, c := n.Keys[last], n.Children[last]
	n.Keys = n.Keys[:last]
	n.Children = n.Children[:last]

	target.Keys[0] = targetRisenKey
	target.Keys = append([]int64{k}, target.Keys...)
	target.Children = append([]int64{c}, target.Children...)
}

// MoveFrontToRearOf moves n's first entry to the rear of target,
// rewriting the crossed separator key.
func (n *InternalPage) MoveFrontToRearOf(target *InternalPage, thisRisenKey int64) {
	k, c := thisRisenKey, n.Children[0]
	n.Keys = n.Keys[1:]
	n.Children = n.Children[1:]

	target.Keys = append(target.Keys, k)
	target.Children = append(target.Children, c)
}

// MoveAllTo appends n's entries onto target, rewriting n's now-crossed
// separator to thisRisenKey (the parent's key over n).
func (n *InternalPage) MoveAllTo(target *InternalPage, thisRisenKey int64) {
	n.Keys[0] = thisRisenKey
	target.Keys = append(target.Keys, n.Keys...)
	target.Children = append(target.Children, n.Children...)
	n.Keys, n.Children = nil, nil
}

// --- serialization ---

// DecodePageType reads only the leading type byte, letting the tree
// pick which decoder to use without fully parsing the page.
func DecodePageType(data []byte) types.PageType {
	return types.PageType(data[hdrPageType])
}

// EncodeLeaf serializes l into data (types.PageSize bytes).
func EncodeLeaf(l *LeafPage, data []byte) error {
	clear(data)
	data[hdrPageType] = byte(types.PageTypeBPlusLeaf)
	binary.LittleEndian.PutUint16(data[hdrSize:], uint16(len(l.Keys)))
	binary.LittleEndian.PutUint16(data[hdrMaxSize:], uint16(l.MaxSize))
	binary.LittleEndian.PutUint64(data[hdrPageID:], uint64(l.PageID))
	binary.LittleEndian.PutUint64(data[hdrParentID:], uint64(l.ParentID))
	binary.LittleEndian.PutUint64(data[hdrNextID:], uint64(l.NextID))

	offset := hdrBodyOffset
	for i, k := range l.Keys {
		if offset+leafEntrySize > len(data) {
			return fmt.Errorf("bplustree: leaf page overflow serializing entry %d", i)
		}
		binary.LittleEndian.PutUint64(data[offset:], uint64(k))
		binary.LittleEndian.PutUint64(data[offset+8:], uint64(l.Values[i].PageID))
		binary.LittleEndian.PutUint32(data[offset+16:], uint32(l.Values[i].SlotID))
		offset += leafEntrySize
	}
	return nil
}

// DecodeLeaf parses a leaf page previously written by EncodeLeaf.
func DecodeLeaf(data []byte) (*LeafPage, error) {
	if types.PageType(data[hdrPageType]) != types.PageTypeBPlusLeaf {
		return nil, fmt.Errorf("bplustree: page is not a leaf page")
	}
	size := int(binary.LittleEndian.Uint16(data[hdrSize:]))
	l := &LeafPage{
		MaxSize:  int(binary.LittleEndian.Uint16(data[hdrMaxSize:])),
		PageID:   int64(binary.LittleEndian.Uint64(data[hdrPageID:])),
		ParentID: int64(binary.LittleEndian.Uint64(data[hdrParentID:])),
		NextID:   int64(binary.LittleEndian.Uint64(data[hdrNextID:])),
		Keys:     make([]int64, size),
		Values:   make([]RID, size),
	}
	offset := hdrBodyOffset
	for i := 0; i < size; i++ {
		l.Keys[i] = int64(binary.LittleEndian.Uint64(data[offset:]))
		l.Values[i].PageID = int64(binary.LittleEndian.Uint64(data[offset+8:]))
		l.Values[i].SlotID = int32(binary.LittleEndian.Uint32(data[offset+16:]))
		offset += leafEntrySize
	}
	return l, nil
}

// EncodeInternal serializes n into data.
func EncodeInternal(n *InternalPage, data []byte) error {
	clear(data)
	data[hdrPageType] = byte(types.PageTypeBPlusInternal)
	binary.LittleEndian.PutUint16(data[hdrSize:], uint16(len(n.Keys)))
	binary.LittleEndian.PutUint16(data[hdrMaxSize:], uint16(n.MaxSize))
	binary.LittleEndian.PutUint64(data[hdrPageID:], uint64(n.PageID))
	binary.LittleEndian.PutUint64(data[hdrParentID:], uint64(n.ParentID))

	offset := hdrBodyOffset
	for i, k := range n.Keys {
		if offset+internalEntrySize > len(data) {
			return fmt.Errorf("bplustree: internal page overflow serializing entry %d", i)
		}
		binary.LittleEndian.PutUint64(data[offset:], uint64(k))
		binary.LittleEndian.PutUint64(data[offset+8:], uint64(n.Children[i]))
		offset += internalEntrySize
	}
	return nil
}

// DecodeInternal parses an internal page previously written by
// EncodeInternal.
func DecodeInternal(data []byte) (*InternalPage, error) {
	if types.PageType(data[hdrPageType]) != types.PageTypeBPlusInternal {
		return nil, fmt.Errorf("bplustree: page is not an internal page")
	}
	size := int(binary.LittleEndian.Uint16(data[hdrSize:]))
	n := &InternalPage{
		MaxSize:  int(binary.LittleEndian.Uint16(data[hdrMaxSize:])),
		PageID:   int64(binary.LittleEndian.Uint64(data[hdrPageID:])),
		ParentID: int64(binary.LittleEndian.Uint64(data[hdrParentID:])),
		Keys:     make([]int64, size),
		Children: make([]int64, size),
	}
	offset := hdrBodyOffset
	for i := 0; i < size; i++ {
		n.Keys[i] = int64(binary.LittleEndian.Uint64(data[offset:]))
		n.Children[i] = int64(binary.LittleEndian.Uint64(data[offset+8:]))
		offset += internalEntrySize
	}
	return n, nil
}
