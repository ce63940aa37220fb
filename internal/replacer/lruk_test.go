package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryPreferredOverCache(t *testing.T) {
	r := New(4, 2)

	// Frame 0 crosses into the cache set (2 accesses); frame 1 stays in
	// history (1 access). History always evicts before cache.
	r.RecordAccess(0)
	r.RecordAccess(0)
	r.RecordAccess(1)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, 1, victim)
}

func TestCacheSetOrderedByKDistance(t *testing.T) {
	r := New(4, 2)

	// Frame 0: accesses at t=1,2 -> k-distance anchored at t=1.
	r.RecordAccess(0)
	r.RecordAccess(0)
	// Frame 1: accesses at t=3,4 -> k-distance anchored at t=3, "more
	// recent" k-th access than frame 0's, so frame 0 is colder.
	r.RecordAccess(1)
	r.RecordAccess(1)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, 0, victim)
}

func TestNonEvictableFrameNeverChosen(t *testing.T) {
	r := New(2, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, false)

	_, ok := r.Evict()
	assert.False(t, ok)
}

func TestUnpinToEvictableTransition(t *testing.T) {
	r := New(2, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, false)
	assert.Equal(t, 0, r.Size())

	r.SetEvictable(0, true)
	assert.Equal(t, 1, r.Size())
}

func TestRemoveRequiresEvictable(t *testing.T) {
	r := New(2, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, false)

	assert.Panics(t, func() { r.Remove(0) })
}

func TestRecordAccessRejectsOutOfRangeFrame(t *testing.T) {
	r := New(4, 2)
	assert.Panics(t, func() { r.RecordAccess(4) })
	assert.NotPanics(t, func() { r.RecordAccess(3) })
}

func TestEvictRemovesFromTracking(t *testing.T) {
	r := New(2, 1)
	r.RecordAccess(0)
	r.SetEvictable(0, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, 0, victim)
	assert.Equal(t, 0, r.Size())

	_, ok = r.Evict()
	assert.False(t, ok)
}
