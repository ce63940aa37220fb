package bplustree

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"corestore/internal/types"
)

func TestLeafPageEncodeDecodeRoundTrip(t *testing.T) {
	l := newLeaf(3, types.InvalidPageID, 8)
	for i := 0; i < 5; i++ {
		key := gofakeit.Int64()
		l.Insert(key, RID{PageID: gofakeit.Int64(), SlotID: gofakeit.Int32()})
	}

	data := make([]byte, types.PageSize)
	require.NoError(t, EncodeLeaf(l, data))

	got, err := DecodeLeaf(data)
	require.NoError(t, err)
	require.Equal(t, l.PageID, got.PageID)
	require.Equal(t, l.ParentID, got.ParentID)
	require.Equal(t, l.Keys, got.Keys)
	require.Equal(t, l.Values, got.Values)
}

func TestInternalPageEncodeDecodeRoundTrip(t *testing.T) {
	n := newInternal(4, types.InvalidPageID, 8)
	n.InitRoot(10, 11, 100)
	n.Insert(200, 12)

	data := make([]byte, types.PageSize)
	require.NoError(t, EncodeInternal(n, data))

	got, err := DecodeInternal(data)
	require.NoError(t, err)
	require.Equal(t, n.Keys, got.Keys)
	require.Equal(t, n.Children, got.Children)
}

func TestLeafSplitOffKeepsBothHalvesSorted(t *testing.T) {
	l := newLeaf(1, types.InvalidPageID, 4)
	for i := int64(0); i < 4; i++ {
		l.Insert(i, RID{PageID: i})
	}

	right := l.SplitOff(2)
	require.Equal(t, []int64{0, 1}, l.Keys)
	require.Equal(t, []int64{2, 3}, right.Keys)
}

func TestInternalSearchDescendsToCorrectChild(t *testing.T) {
	n := newInternal(1, types.InvalidPageID, 8)
	n.InitRoot(100, 200, 10)
	n.Insert(20, 300)

	require.Equal(t, int64(100), n.Search(5))
	require.Equal(t, int64(200), n.Search(10))
	require.Equal(t, int64(200), n.Search(15))
	require.Equal(t, int64(300), n.Search(20))
	require.Equal(t, int64(300), n.Search(999))
}

func TestInternalSplitOffRisenKeyBeforeSplitPoint(t *testing.T) {
	n := newInternal(1, types.InvalidPageID, 5)
	n.Keys = []int64{0, 10, 20, 30, 40}
	n.Children = []int64{100, 200, 300, 400, 500}

	right, risen := n.SplitOff(2, 5, 999)

	require.Equal(t, int64(20), risen)
	require.Equal(t, []int64{0, 5, 10}, n.Keys)
	require.Equal(t, []int64{100, 999, 200}, n.Children)
	require.Equal(t, []int64{0, 30, 40}, right.Keys)
	require.Equal(t, []int64{300, 400, 500}, right.Children)
}

func TestInternalSplitOffRisenKeyAtOrAfterSplitPoint(t *testing.T) {
	n := newInternal(1, types.InvalidPageID, 3)
	n.Keys = []int64{0, 10, 20}
	n.Children = []int64{100, 200, 300}

	right, risen := n.SplitOff(2, 15, 999)

	require.Equal(t, int64(15), risen)
	require.Equal(t, []int64{0, 10}, n.Keys)
	require.Equal(t, []int64{100, 200}, n.Children)
	require.Equal(t, []int64{0, 20}, right.Keys)
	require.Equal(t, []int64{999, 300}, right.Children)
}
