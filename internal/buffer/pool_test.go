package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corestore/internal/disk"
)

func newPool(t *testing.T, poolSize int) *PoolManager {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(poolSize, 4, 2, dm)
}

func TestNewPagePinnedOnCreate(t *testing.T) {
	bp := newPool(t, 4)

	pg, err := bp.NewPage()
	require.NoError(t, err)
	require.EqualValues(t, 1, pg.PinCount)
}

func TestUnpinFailsWhenNotResident(t *testing.T) {
	bp := newPool(t, 4)
	require.Error(t, bp.UnpinPage(999, false))
}

func TestDirtyPageWrittenBackOnEviction(t *testing.T) {
	bp := newPool(t, 1)

	pg1, err := bp.NewPage()
	require.NoError(t, err)
	id1 := pg1.ID
	pg1.Data[0] = 0xAB
	require.NoError(t, bp.UnpinPage(id1, true))

	// Pool has only one frame; fetching a fresh page must evict page 1
	// and write it back first.
	pg2, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg2.ID, false))

	refetched, err := bp.FetchPage(id1)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), refetched.Data[0])
	require.NoError(t, bp.UnpinPage(id1, false))
}

func TestPinnedFrameCannotBeEvicted(t *testing.T) {
	bp := newPool(t, 1)

	pg1, err := bp.NewPage()
	require.NoError(t, err)
	_ = pg1

	// The sole frame is still pinned; a second NewPage must fail since
	// nothing is free or evictable.
	_, err = bp.NewPage()
	require.Error(t, err)
}

func TestDeletePageRefusesWhilePinned(t *testing.T) {
	bp := newPool(t, 4)
	pg, err := bp.NewPage()
	require.NoError(t, err)

	ok, err := bp.DeletePage(pg.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePageSucceedsWhenUnpinned(t *testing.T) {
	bp := newPool(t, 4)
	pg, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg.ID, false))

	ok, err := bp.DeletePage(pg.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFetchPageHitReusesFrame(t *testing.T) {
	bp := newPool(t, 4)
	pg, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg.ID, false))

	refetched, err := bp.FetchPage(pg.ID)
	require.NoError(t, err)
	require.Equal(t, pg.ID, refetched.ID)
	require.NoError(t, bp.UnpinPage(pg.ID, false))

	stats := bp.Stats()
	require.EqualValues(t, 1, stats.Hits)
}
