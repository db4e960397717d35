package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingWriteRead(t *testing.T) {
	ring, err := NewRing[int](4)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, ring.Write(i))
	}

	assert.Equal(t, 3, ring.Size())
	assert.False(t, ring.IsFull())
	assert.False(t, ring.IsEmpty())

	v, ok := ring.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = ring.Read()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 1, ring.Size())
}

func TestRingReadEmpty(t *testing.T) {
	ring, err := NewRing[string](2)
	require.NoError(t, err)

	v, ok := ring.Read()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.True(t, ring.IsEmpty())
}

func TestRingDropOldest(t *testing.T) {
	var dropped []int
	ring, err := NewRing[int](2,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, ring.Write(1))
	require.NoError(t, ring.Write(2))
	require.NoError(t, ring.Write(3))

	assert.Equal(t, []int{1}, dropped)
	assert.Equal(t, 2, ring.Size())

	v, ok := ring.Read()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, int64(1), ring.Stats().Overflows())
	assert.Equal(t, int64(1), ring.Stats().Drops())
}

func TestRingDropNewest(t *testing.T) {
	var dropped []int
	ring, err := NewRing[int](2,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, ring.Write(1))
	require.NoError(t, ring.Write(2))
	require.NoError(t, ring.Write(3))

	assert.Equal(t, []int{3}, dropped)

	v, ok := ring.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRingReadBatch(t *testing.T) {
	ring, err := NewRing[int](8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, ring.Write(i))
	}

	batch := ring.ReadBatch(3)
	assert.Equal(t, []int{0, 1, 2}, batch)
	assert.Equal(t, 2, ring.Size())

	// Asking for more than available drains the rest.
	batch = ring.ReadBatch(10)
	assert.Equal(t, []int{3, 4}, batch)
	assert.True(t, ring.IsEmpty())

	assert.Nil(t, ring.ReadBatch(0))
	assert.Nil(t, ring.ReadBatch(3))
}

func TestRingPeek(t *testing.T) {
	ring, err := NewRing[int](2)
	require.NoError(t, err)

	_, ok := ring.Peek()
	assert.False(t, ok)

	require.NoError(t, ring.Write(42))
	v, ok := ring.Peek()
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, ring.Size())
}

func TestRingClear(t *testing.T) {
	var dropped []int
	ring, err := NewRing[int](4,
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, ring.Write(1))
	require.NoError(t, ring.Write(2))

	ring.Clear()

	assert.True(t, ring.IsEmpty())
	assert.ElementsMatch(t, []int{1, 2}, dropped)
}

func TestRingCloseRejectsWrites(t *testing.T) {
	ring, err := NewRing[int](2)
	require.NoError(t, err)

	require.NoError(t, ring.Write(1))
	require.NoError(t, ring.Close())

	err = ring.Write(2)
	assert.Error(t, err)

	// Buffered items remain readable after close.
	v, ok := ring.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRingWrapAround(t *testing.T) {
	ring, err := NewRing[int](3)
	require.NoError(t, err)

	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, ring.Write(round*10+i))
		}
		for i := 0; i < 3; i++ {
			v, ok := ring.Read()
			require.True(t, ok)
			assert.Equal(t, round*10+i, v)
		}
	}
	assert.Equal(t, int64(15), ring.Stats().Writes())
	assert.Equal(t, int64(15), ring.Stats().Reads())
	assert.Equal(t, int64(3), ring.Stats().MaxSize())
}

func TestRingConcurrentAccess(t *testing.T) {
	ring, err := NewRing[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = ring.Write(base + i)
			}
		}(w * 1000)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ring.Read()
			}
		}()
	}
	wg.Wait()

	// Everything written was either read, dropped, or still buffered.
	stats := ring.Stats()
	assert.Equal(t, stats.Writes(), stats.Reads()+stats.Drops()+int64(ring.Size()))
}
