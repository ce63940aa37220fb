package bplustree

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corestore/internal/buffer"
	"corestore/internal/catalog"
	"corestore/internal/disk"
	"corestore/internal/txn"
)

func newTestTree(t *testing.T, leafMaxSize, internalMaxSize int) *Tree {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(64, 4, 2, dm)
	header, err := catalog.Load(pool)
	require.NoError(t, err)

	return Open("test-index", pool, header, leafMaxSize, internalMaxSize)
}

func TestInsertAndGetSingleLeaf(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	for i := int64(0); i < 3; i++ {
		ok, err := tree.Insert(i, RID{PageID: i, SlotID: int32(i)})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := int64(0); i < 3; i++ {
		rid, ok, err := tree.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, rid.PageID)
	}
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	tree := newTestTree(t, 4, 4)
	ok, err := tree.Insert(1, RID{PageID: 1})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Insert(1, RID{PageID: 2})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLeafSplitPromotesRoot(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	for i := int64(0); i < 5; i++ {
		ok, err := tree.Insert(i, RID{PageID: i})
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Root must now be an internal page, and every key is still
	// reachable.
	_, err := tree.fetchInternal(tree.RootPageID())
	require.NoError(t, err)
	for i := int64(0); i < 5; i++ {
		rid, ok, err := tree.Get(i)
		require.NoError(t, err)
		require.True(t, ok, "key %d missing after split", i)
		require.Equal(t, i, rid.PageID)
	}
}

func TestIterationYieldsSortedKeys(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	inserted := []int64{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, k := range inserted {
		ok, err := tree.Insert(k, RID{PageID: k})
		require.NoError(t, err)
		require.True(t, ok)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.End() {
		got = append(got, it.Key())
		require.NoError(t, it.Next())
	}
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestInsertRandomOrderAcrossMultipleInternalSplits(t *testing.T) {
	// leafMax/internalMax of 4 with 200 keys forces several internal
	// splits; a shuffled insert order exercises risen keys landing on
	// both sides of InternalPage.SplitOff's split point, unlike an
	// ascending order which always routes the new child to the
	// rightmost slot.
	tree := newTestTree(t, 4, 4)

	const n = 200
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i)
	}
	rand.New(rand.NewSource(7)).Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, k := range keys {
		ok, err := tree.Insert(k, RID{PageID: k})
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := int64(0); i < n; i++ {
		rid, ok, err := tree.Get(i)
		require.NoError(t, err)
		require.True(t, ok, "key %d missing after randomized inserts", i)
		require.Equal(t, i, rid.PageID)
	}
}

func TestBeginAtPositionsIteratorAtGivenKey(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	for i := int64(1); i <= 100; i++ {
		ok, err := tree.Insert(i, RID{PageID: i})
		require.NoError(t, err)
		require.True(t, ok)
	}

	it, err := tree.BeginAt(37)
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for !it.End() {
		got = append(got, it.Key())
		require.NoError(t, it.Next())
	}

	want := make([]int64, 0, 64)
	for i := int64(37); i <= 100; i++ {
		want = append(want, i)
	}
	require.Equal(t, want, got)
}

func TestDeleteThenRebalanceKeepsRemainingKeysReachable(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	const n = 30
	for i := int64(0); i < n; i++ {
		ok, err := tree.Insert(i, RID{PageID: i})
		require.NoError(t, err)
		require.True(t, ok)
	}

	tx := txn.New()
	for i := int64(0); i < n; i += 2 {
		require.NoError(t, tree.Delete(i, tx))
	}

	for i := int64(0); i < n; i++ {
		_, ok, err := tree.Get(i)
		require.NoError(t, err)
		if i%2 == 0 {
			require.False(t, ok, "key %d should have been deleted", i)
		} else {
			require.True(t, ok, "key %d should still be present", i)
		}
	}
}

func TestDeleteAllEmptiesTree(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	const n = 12
	for i := int64(0); i < n; i++ {
		_, err := tree.Insert(i, RID{PageID: i})
		require.NoError(t, err)
	}

	tx := txn.New()
	for i := int64(0); i < n; i++ {
		require.NoError(t, tree.Delete(i, tx))
	}

	require.True(t, tree.IsEmpty())
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 4, 4)
	_, err := tree.Insert(1, RID{PageID: 1})
	require.NoError(t, err)

	tx := txn.New()
	require.NoError(t, tree.Delete(99, tx))

	_, ok, err := tree.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
}
