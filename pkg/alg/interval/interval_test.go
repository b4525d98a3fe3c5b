package interval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/aether/pkg/alg/interval"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tree := interval.New[string]()
	assert.NotNil(t, tree)
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.QueryPoint(1))

	var zero interval.Tree[int]
	assert.Empty(t, zero.QueryOverlap(0, 10))
}

func TestInsert_QueryOverlap(t *testing.T) {
	t.Parallel()

	tree := interval.New[string]()
	tree.Insert(10, 20, "a")
	tree.Insert(30, 40, "b")
	tree.Insert(5, 35, "c")

	tests := []struct {
		name      string
		low, high uint32
		want      []string
	}{
		{"left edge", 15, 25, []string{"c", "a"}},
		{"touching end", 40, 50, []string{"b"}},
		{"no match", 41, 60, nil},
		{"spans all", 0, 100, []string{"c", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got []string

			for _, iv := range tree.QueryOverlap(tt.low, tt.high) {
				got = append(got, iv.Value)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInsert_SwapsInvertedRange(t *testing.T) {
	t.Parallel()

	tree := interval.New[int]()
	tree.Insert(20, 10, 1)

	results := tree.QueryPoint(15)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(10), results[0].Low)
	assert.Equal(t, uint32(20), results[0].High)
}

func TestInnermost(t *testing.T) {
	t.Parallel()

	tree := interval.New[string]()
	tree.Insert(0, 100, "file")
	tree.Insert(10, 50, "function")
	tree.Insert(20, 30, "call")

	got, ok := tree.Innermost(25)
	require.True(t, ok)
	assert.Equal(t, "call", got.Value)

	got, ok = tree.Innermost(45)
	require.True(t, ok)
	assert.Equal(t, "function", got.Value)

	_, ok = tree.Innermost(200)
	assert.False(t, ok)
}

func TestInsert_ManyKeepsAllReachable(t *testing.T) {
	t.Parallel()

	tree := interval.New[uint32]()

	const count = 1000

	for idx := range uint32(count) {
		tree.Insert(idx*10, idx*10+5, idx)
	}

	require.Equal(t, count, tree.Len())

	for idx := range uint32(count) {
		results := tree.QueryPoint(idx*10 + 2)
		require.Len(t, results, 1)
		assert.Equal(t, idx, results[0].Value)
	}

	assert.Len(t, tree.QueryOverlap(0, count*10), count)
}
