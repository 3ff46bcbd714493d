package floathist

import (
	"sync"
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/pcg"
)

func TestConcurrentDoubleHistogram(t *testing.T) {
	t.Run("Zero", func(t *testing.T) {
		h, err := NewConcurrent(1000, 3)
		assert.NoError(t, err)
		assert.Equal(t, h.TotalCount(), int64(0))
	})

	t.Run("MatchesNonConcurrent", func(t *testing.T) {
		ch, err := NewConcurrent(1000000, 3)
		assert.NoError(t, err)
		h, err := New(1000000, 3)
		assert.NoError(t, err)

		for i := 0; i < 1000; i++ {
			v := float64(pcg.Uint32n(1000000)) + 1
			assert.NoError(t, ch.RecordValue(v))
			assert.NoError(t, h.RecordValue(v))
		}

		assert.Equal(t, ch.TotalCount(), h.TotalCount())
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		h, err := NewConcurrent(1000000, 3)
		assert.NoError(t, err)

		const goroutines = 8
		const perGoroutine = 2000

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := 0; g < goroutines; g++ {
			go func() {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					_ = h.RecordValue(float64(pcg.Uint32n(1000000)) + 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, h.TotalCount(), int64(goroutines*perGoroutine))
	})

	t.Run("CopyInto", func(t *testing.T) {
		ch, err := NewConcurrent(1000000, 3)
		assert.NoError(t, err)
		for i := 0; i < 100; i++ {
			assert.NoError(t, ch.RecordValue(float64(i)+1))
		}

		dst, err := New(1000000, 3)
		assert.NoError(t, err)
		assert.NoError(t, ch.CopyInto(dst))

		assert.Equal(t, dst.TotalCount(), ch.TotalCount())
	})

	t.Run("CountBetweenValues", func(t *testing.T) {
		h, err := NewConcurrent(1000000, 3)
		assert.NoError(t, err)
		for i := 1; i <= 100; i++ {
			assert.NoError(t, h.RecordValue(float64(i)))
		}

		assert.Equal(t, h.CountBetweenValues(1, 1000000), int64(100))
	})

	t.Run("ExactRatioBoundaryRepresentable", func(t *testing.T) {
		h, err := NewConcurrent(1000000000, 2)
		assert.NoError(t, err)

		assert.NoError(t, h.RecordValue(1e-3))
		assert.NoError(t, h.RecordValue(1e6))
		assert.Equal(t, h.TotalCount(), int64(2))
	})
}
