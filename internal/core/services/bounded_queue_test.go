package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedQueue_EvictsOldest(t *testing.T) {
	q := newBoundedQueue[int](3)

	for i := 1; i <= 3; i++ {
		_, overflow := q.Push(i)
		assert.False(t, overflow)
	}

	evicted, overflow := q.Push(4)
	assert.True(t, overflow)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	var got []int
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestBoundedQueue_PopEmpty(t *testing.T) {
	q := newBoundedQueue[string](2)

	v, ok := q.Pop()
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestBoundedQueue_ReadyAndClear(t *testing.T) {
	q := newBoundedQueue[int](2)
	q.Push(1)
	q.Push(2)

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal after push")
	}

	require.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, q.Cap())
}

func TestBoundedQueue_MinimumCapacity(t *testing.T) {
	q := newBoundedQueue[int](0)
	assert.Equal(t, 1, q.Cap())
}
