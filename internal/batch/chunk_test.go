package batch

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkSplitsIntoFixedSizes(t *testing.T) {
	ids := make([]string, 22)
	for i := range ids {
		ids[i] = "user-" + strconv.Itoa(i)
	}

	chunks := Chunk(ids, 20)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], 20)
	require.Len(t, chunks[1], 2)
	require.Equal(t, "user-0", chunks[0][0])
	require.Equal(t, "user-21", chunks[1][1])
}

func TestChunkEmpty(t *testing.T) {
	require.Empty(t, Chunk([]int{}, 20))
	require.Empty(t, Chunk[int](nil, 5))
}

func TestChunkDefaultsSize(t *testing.T) {
	items := make([]int, 41)
	chunks := Chunk(items, 0)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[2], 1)
}

func TestChunkAppendDoesNotClobberNext(t *testing.T) {
	items := []int{1, 2, 3, 4}
	chunks := Chunk(items, 2)
	_ = append(chunks[0], 99)
	require.Equal(t, []int{3, 4}, chunks[1])
}
