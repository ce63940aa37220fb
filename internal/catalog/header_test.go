package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corestore/internal/buffer"
	"corestore/internal/disk"
)

func newTestPool(t *testing.T) *buffer.PoolManager {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return buffer.New(8, 4, 2, dm)
}

func TestInsertFindUpdateRoundTrip(t *testing.T) {
	pool := newTestPool(t)

	h, err := Load(pool)
	require.NoError(t, err)

	_, ok := h.FindRecord("primary")
	require.False(t, ok)

	require.NoError(t, h.InsertRecord("primary", 7))
	id, ok := h.FindRecord("primary")
	require.True(t, ok)
	require.EqualValues(t, 7, id)

	require.NoError(t, h.UpdateRecord("primary", 9))
	id, ok = h.FindRecord("primary")
	require.True(t, ok)
	require.EqualValues(t, 9, id)
}

func TestInsertDuplicateNameFails(t *testing.T) {
	pool := newTestPool(t)
	h, err := Load(pool)
	require.NoError(t, err)

	require.NoError(t, h.InsertRecord("idx", 1))
	require.Error(t, h.InsertRecord("idx", 2))
}

func TestSurvivesReload(t *testing.T) {
	pool := newTestPool(t)
	h, err := Load(pool)
	require.NoError(t, err)
	require.NoError(t, h.InsertRecord("secondary", 42))
	require.NoError(t, pool.FlushAllPages())

	h2, err := Load(pool)
	require.NoError(t, err)
	id, ok := h2.FindRecord("secondary")
	require.True(t, ok)
	require.EqualValues(t, 42, id)
}
