// Package hashtable implements the extendible hash table used by the
// buffer pool as its page-id -> frame-id directory. It is a direct
// generalization of bustub's container/hash/extendible_hash_table.cpp:
// same directory-doubling / bucket-split algorithm, same single-latch
// discipline, ported from the template-instantiation pattern to Go
// generics with an explicit Hasher capability parameter in place of
// std::hash<K>.
package hashtable

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes a 64-bit digest of a key. Callers pick a Hasher
// appropriate to K; Int64Hasher below covers the buffer pool's
// page-id -> frame-id instantiation.
type Hasher[K comparable] func(key K) uint64

// Int64Hasher hashes an int64 key (page ids) through xxhash rather than
// a hand-rolled mix — the same digest the buffer pool's page table uses
// for every Find/Insert/Remove.
func Int64Hasher(key int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxhash.Sum64(buf[:])
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// bucket is an ordered list of up to bucketSize entries plus its local
// depth. Multiple directory slots may point at the same bucket; a split
// replaces every aliasing slot atomically under the table's latch.
type bucket[K comparable, V any] struct {
	entries []entry[K, V]
	depth   int
}

func newBucket[K comparable, V any](depth int) *bucket[K, V] {
	return &bucket[K, V]{depth: depth}
}

func (b *bucket[K, V]) isFull(cap int) bool {
	return len(b.entries) >= cap
}

func (b *bucket[K, V]) find(k K) (V, bool) {
	for _, e := range b.entries {
		if e.key == k {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// upsert overwrites k's value if present, else appends. Used for a
// normal insert into a non-full bucket.
func (b *bucket[K, V]) upsert(k K, v V) {
	for i := range b.entries {
		if b.entries[i].key == k {
			b.entries[i].val = v
			return
		}
	}
	b.entries = append(b.entries, entry[K, V]{key: k, val: v})
}

func (b *bucket[K, V]) remove(k K) bool {
	for i, e := range b.entries {
		if e.key == k {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Table is a concurrent extendible hash table: find/insert/remove plus
// observability into global depth, bucket count, and per-slot local
// depth, all serialized by a single latch (mu).
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	globalDepth int
	bucketSize  int
	numBuckets  int
	dir         []*bucket[K, V]
	hash        Hasher[K]
}

// New builds a table with one empty bucket and global depth 0, exactly
// as the source's constructor does.
func New[K comparable, V any](bucketSize int, hash Hasher[K]) *Table[K, V] {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	t := &Table[K, V]{
		bucketSize: bucketSize,
		numBuckets: 1,
		hash:       hash,
	}
	t.dir = []*bucket[K, V]{newBucket[K, V](0)}
	return t
}

func (t *Table[K, V]) indexOf(k K) int {
	mask := (1 << t.globalDepth) - 1
	return int(t.hash(k)) & mask
}

// Find returns the value for k, if present.
func (t *Table[K, V]) Find(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(k)].find(k)
}

// Remove deletes k, reporting whether it was present. No merging or
// directory shrinking is performed — an explicit simplification carried
// over from the source.
func (t *Table[K, V]) Remove(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(k)].remove(k)
}

// Insert writes (k, v), overwriting any existing value for k, growing
// the directory and splitting buckets as many times as necessary.
func (t *Table[K, V]) Insert(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(k)
	b := t.dir[idx]

	for b.isFull(t.bucketSize) {
		if b.depth == t.globalDepth {
			t.doubleDirectory()
		}
		t.splitBucket(idx)
		idx = t.indexOf(k)
		b = t.dir[idx]
	}

	b.upsert(k, v)
}

// doubleDirectory appends a copy of every existing slot pointer and
// increments the global depth. Existing buckets end up addressed by two
// slots each, which is still consistent since their local depth is
// unchanged.
func (t *Table[K, V]) doubleDirectory() {
	old := len(t.dir)
	t.dir = append(t.dir, t.dir[:old]...)
	t.globalDepth++
}

// splitBucket splits the bucket at idx into two fresh buckets at depth
// old.depth+1, reassigning every directory slot that aliased the old
// bucket (not just idx and its bit-partner) — the general case the
// design flags as required beyond the two-slot special case in the
// original source.
func (t *Table[K, V]) splitBucket(idx int) {
	old := t.dir[idx]
	newDepth := old.depth + 1

	left := newBucket[K, V](newDepth)
	right := newBucket[K, V](newDepth)
	t.numBuckets++

	mask := (1 << old.depth) - 1
	lowBits := idx & mask
	splitBit := 1 << old.depth

	for i, b := range t.dir {
		if b != old {
			continue
		}
		if i&mask != lowBits {
			continue
		}
		if i&splitBit != 0 {
			t.dir[i] = right
		} else {
			t.dir[i] = left
		}
	}

	for _, e := range old.entries {
		target := t.dir[t.indexOf(e.key)]
		target.entries = append(target.entries, e)
	}
}

// GlobalDepth returns the number of low-order hash bits used to index
// the directory.
func (t *Table[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// NumBuckets returns the number of distinct buckets currently allocated.
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numBuckets
}

// LocalDepth returns the local depth of the bucket addressed by dirIndex.
func (t *Table[K, V]) LocalDepth(dirIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[dirIndex].depth
}
