package inthist

import (
	"sync"
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/pcg"
)

func TestConcurrentHistogram(t *testing.T) {
	t.Run("Zero", func(t *testing.T) {
		h, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)
		assert.Equal(t, h.TotalCount(), int64(0))
	})

	t.Run("MatchesNonConcurrent", func(t *testing.T) {
		ch, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)
		h, err := New(1, 1000000, 3)
		assert.NoError(t, err)

		for i := 0; i < 10000; i++ {
			v := int64(pcg.Uint32n(1000000))
			assert.NoError(t, ch.RecordValue(v))
			assert.NoError(t, h.RecordValue(v))
		}

		assert.Equal(t, ch.TotalCount(), h.TotalCount())
		assert.Equal(t, ch.Min(), h.Min())
		assert.Equal(t, ch.Max(), h.Max())
		assert.Equal(t, ch.Mean(), h.Mean())

		for p := 0.0; p < 100; p += 10 {
			cv, err := ch.ValueAtPercentile(p)
			assert.NoError(t, err)
			v, err := h.ValueAtPercentile(p)
			assert.NoError(t, err)
			assert.Equal(t, cv, v)
		}
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		h, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)

		const goroutines = 16
		const perGoroutine = 10000

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := 0; g < goroutines; g++ {
			go func() {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					_ = h.RecordValue(int64(pcg.Uint32n(1000000)) + 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, h.TotalCount(), int64(goroutines*perGoroutine))
	})

	t.Run("CopyInto", func(t *testing.T) {
		ch, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)
		for i := 0; i < 1000; i++ {
			assert.NoError(t, ch.RecordValue(int64(i)+1))
		}

		dst, err := New(1, 1000000, 3)
		assert.NoError(t, err)
		assert.NoError(t, ch.CopyInto(dst))

		assert.Equal(t, dst.TotalCount(), ch.TotalCount())
		assert.Equal(t, dst.Max(), ch.Max())

		assert.NoError(t, ch.RecordValue(5))
		assert.Equal(t, dst.TotalCount(), int64(1000))
	})

	t.Run("BucketOverflowRejected", func(t *testing.T) {
		_, err := NewConcurrent(1, 1<<62, 5)
		assert.That(t, err != nil)
	})

	t.Run("CountBetweenValues", func(t *testing.T) {
		h, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, h.RecordValue(int64(i)))
		}

		assert.Equal(t, h.CountBetweenValues(1, 1000000), int64(1000))
		assert.Equal(t, h.CountBetweenValues(1000001, 2000000), int64(0))
	})

	t.Run("ValidateQuiescedPasses", func(t *testing.T) {
		h, err := NewConcurrent(1, 1000000, 3)
		assert.NoError(t, err)
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, h.RecordValue(int64(i)))
		}
		h.ValidateQuiesced()
	})
}

func BenchmarkConcurrentHistogram(b *testing.B) {
	b.Run("RecordValue", func(b *testing.B) {
		h, _ := NewConcurrent(1, 1000000000, 3)
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			_ = h.RecordValue(1024)
		}
	})

	b.Run("RecordValue_Parallel", func(b *testing.B) {
		h, _ := NewConcurrent(1, 1000000000, 3)
		b.ReportAllocs()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = h.RecordValue(1024)
			}
		})
	})
}
