package queue_test

import (
	"testing"

	"github.com/kdice/kdice/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := queue.New("a", "b")
	q.PushBack("c", "d", "e")

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, q.Entries())

	var popped []string

	for !q.Empty() {
		entry, ok := q.PopFront()
		require.True(t, ok)

		popped = append(popped, entry)
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, popped)

	_, ok := q.PopFront()
	assert.False(t, ok)
}

func TestQueueBothEnds(t *testing.T) {
	t.Parallel()

	q := queue.New[int]()
	q.PushBack(2, 3)
	q.PushFront(1)
	q.PushFront(0)

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, []int{0, 1, 2, 3}, q.Entries())

	last, ok := q.PopBack()
	require.True(t, ok)
	assert.Equal(t, 3, last)

	first, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, 0, first)

	assert.Equal(t, []int{1, 2}, q.Entries())
}

func TestQueueWrapsAround(t *testing.T) {
	t.Parallel()

	q := queue.New[int]()

	for round := range 50 {
		q.PushBack(round, round+1000)

		entry, ok := q.PopFront()
		require.True(t, ok)

		if round == 0 {
			assert.Equal(t, 0, entry)
		}
	}

	assert.Equal(t, 50, q.Len())

	entries := q.Entries()
	assert.Len(t, entries, 50)
	assert.Equal(t, 25, entries[0])
}
