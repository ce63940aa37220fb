package txn

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndDrainDeletedPages(t *testing.T) {
	tx := New()
	tx.AddDeletedPage(3)
	tx.AddDeletedPage(7)
	tx.AddDeletedPage(3) // duplicate, set semantics

	ids := tx.DeletedPageSet()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	require.Equal(t, []int64{3, 7}, ids)

	tx.Clear()
	require.Empty(t, tx.DeletedPageSet())
}
