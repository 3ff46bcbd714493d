package recorder

import (
	"sync"
	"testing"

	"github.com/zeebo/assert"

	"github.com/gitter-badger/HdrHistogram/inthist"
)

func TestIntervalRecorder(t *testing.T) {
	t.Run("RecordAndSnapshot", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		for i := int64(1); i <= 100; i++ {
			assert.NoError(t, r.RecordValue(i))
		}

		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		assert.Equal(t, snap.TotalCount(), int64(100))

		// nothing more recorded; a second snapshot is empty
		snap2, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		assert.Equal(t, snap2.TotalCount(), int64(0))
	})

	t.Run("RecycleBuffer", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(5))
		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(10))
		snap2, err := r.GetIntervalHistogram(snap)
		assert.NoError(t, err)
		assert.Equal(t, snap2.TotalCount(), int64(1))
	})

	t.Run("RecycleBufferWrongInstance", func(t *testing.T) {
		r1, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)
		r2, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		snap, err := r1.GetIntervalHistogram(nil)
		assert.NoError(t, err)

		_, err = r2.GetIntervalHistogram(snap)
		assert.That(t, err != nil)
	})

	t.Run("GetIntervalHistogramInto", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(42))

		target, err := inthist.New(1, 1000000, 3)
		assert.NoError(t, err)

		assert.NoError(t, r.GetIntervalHistogramInto(target))
		assert.Equal(t, target.TotalCount(), int64(1))
	})

	t.Run("Reset", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(1))
		assert.NoError(t, r.Reset())

		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		assert.Equal(t, snap.TotalCount(), int64(0))
	})

	t.Run("Current", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(1))
		assert.NoError(t, r.RecordValue(2))
		assert.Equal(t, r.Current().TotalCount(), int64(2))
	})

	t.Run("NoDoubleCountAcrossSnapshot", func(t *testing.T) {
		r, err := NewIntervalRecorderWithHighestTrackableValue(1000000, 3)
		assert.NoError(t, err)

		const writers = 8
		const perWriter = 5000

		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < perWriter; j++ {
					_ = r.RecordValue(int64(j%1000) + 1)
				}
			}()
		}

		var total int64
		for k := 0; k < 50; k++ {
			snap, err := r.GetIntervalHistogram(nil)
			assert.NoError(t, err)
			total += snap.TotalCount()
		}
		wg.Wait()

		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		total += snap.TotalCount()

		assert.Equal(t, total, int64(writers*perWriter))
	})
}

func TestDoubleIntervalRecorder(t *testing.T) {
	t.Run("RecordAndSnapshot", func(t *testing.T) {
		r, err := NewDoubleIntervalRecorderWithRatio(1000000, 3)
		assert.NoError(t, err)

		for i := 1; i <= 100; i++ {
			assert.NoError(t, r.RecordValue(float64(i)))
		}

		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		assert.Equal(t, snap.TotalCount(), int64(100))
	})

	t.Run("WideRatioRoundTrip", func(t *testing.T) {
		r, err := NewDoubleIntervalRecorderWithRatio(1000000000, 2)
		assert.NoError(t, err)

		assert.NoError(t, r.RecordValue(1e-3))
		assert.NoError(t, r.RecordValue(1e6))

		snap, err := r.GetIntervalHistogram(nil)
		assert.NoError(t, err)
		assert.Equal(t, snap.TotalCount(), int64(2))

		lo, err := snap.ValueAtPercentile(1)
		assert.NoError(t, err)
		assert.That(t, lo >= 0)

		hi, err := snap.ValueAtPercentile(100)
		assert.NoError(t, err)
		assert.That(t, hi >= 900000 && hi <= 1100000)
	})
}
