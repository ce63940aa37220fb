package hashtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityHasher maps a key to itself, so a slot's low bits match the
// key's low bits directly — the assumption the two worked examples below
// are built on. Int64Hasher (xxhash) is what production code uses; these
// two tests only care about the directory-doubling mechanics, not any
// particular digest, so a transparent hasher makes the expected bucket
// counts easy to verify by hand.
func identityHasher(k int64) uint64 { return uint64(k) }

func TestDirectoryDoubling(t *testing.T) {
	// bucket_size=2, insert 0,1,2,3,4: 0 and 2 collide on bit0, forcing
	// one split once 4 arrives, ending at global_depth=2, 3 buckets.
	tbl := New[int64, string](2, identityHasher)

	for i := int64(0); i < 5; i++ {
		tbl.Insert(i, "v")
	}

	assert.Equal(t, 2, tbl.GlobalDepth())
	assert.Equal(t, 3, tbl.NumBuckets())
}

func TestDirectoryDoublingRepeatsUntilKeysSeparate(t *testing.T) {
	// bucket_size=2, insert 0,4,8,12: all four share their low two bits,
	// forcing the insert loop to keep splitting/doubling until bit 2
	// separates them into {0,8} and {4,12} at global_depth=3.
	tbl := New[int64, string](2, identityHasher)

	for _, k := range []int64{0, 4, 8, 12} {
		tbl.Insert(k, "v")
	}

	assert.Equal(t, 3, tbl.GlobalDepth())
}

func TestFindInsertRemove(t *testing.T) {
	tbl := New[int64, string](4, Int64Hasher)

	tbl.Insert(1, "one")
	tbl.Insert(2, "two")

	v, ok := tbl.Find(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	tbl.Insert(1, "uno")
	v, ok = tbl.Find(1)
	require.True(t, ok)
	assert.Equal(t, "uno", v)

	assert.True(t, tbl.Remove(2))
	_, ok = tbl.Find(2)
	assert.False(t, ok)

	assert.False(t, tbl.Remove(2))
}

func TestSplitReassignsAllAliasingSlots(t *testing.T) {
	// bucketSize=1 holds one key per bucket, so 64 keys need at least 63
	// splits, which exercises the general aliasing-slot fix: every directory slot
	// referencing the old bucket must be repointed, not just idx and
	// its bit-partner.
	tbl := New[int64, int](1, Int64Hasher)

	const n = 64
	for i := int64(0); i < n; i++ {
		tbl.Insert(i, int(i))
	}

	for i := int64(0); i < n; i++ {
		v, ok := tbl.Find(i)
		require.True(t, ok, "key %d missing after inserts", i)
		assert.Equal(t, int(i), v)
	}
}

func TestFindMissingKey(t *testing.T) {
	tbl := New[int64, string](4, Int64Hasher)
	_, ok := tbl.Find(42)
	assert.False(t, ok)
}
