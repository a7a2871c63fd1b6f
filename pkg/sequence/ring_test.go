package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Push(i))
	}
	assert.Equal(t, []int{1, 2, 3}, r.Items())

	assert.True(t, r.Push(4))
	assert.True(t, r.Push(5))
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRingReset(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	r.Push("d")
	assert.Equal(t, []string{"d"}, r.Items())
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Items())
}

func TestIteratorChain(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 10; i++ {
		r.Push(i)
	}

	evens := r.Iter().Filter(func(v int) bool { return v%2 == 0 }).Collect()
	assert.Equal(t, []int{6, 8}, evens)
	assert.Equal(t, 4, r.Iter().Count())

	desc := From([]int{1, 3, 2}).SortBy(func(a, b int) int { return b - a }).Collect()
	assert.Equal(t, []int{3, 2, 1}, desc)

	doubled := Map(From([]int{1, 2}), func(v int) int { return v * 2 }).Collect()
	assert.Equal(t, []int{2, 4}, doubled)

	assert.Nil(t, From([]int{1}).Filter(func(int) bool { return false }).Collect())
}

func TestDistinctKeepsFirstOccurrence(t *testing.T) {
	got := Distinct(From([]string{"b", "a", "b", "c", "a"})).Collect()
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []int{1, 5, 9}, SortedKeys(map[int]bool{9: true, 1: false, 5: true}))
	assert.NotNil(t, SortedKeys(map[int]struct{}{}))
}
