package inthist

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gitter-badger/HdrHistogram/internal/bitmap"
)

// ConcurrentHistogram is an HDR histogram whose RecordValue path is
// wait-free: any number of goroutines may call it concurrently without
// blocking each other. It is intended to be used under a phaser, whose
// reader side is the only caller expected to read totals while writers
// are active; reads that race with writers see a consistent-enough
// snapshot for statistical purposes but are not linearizable with
// respect to individual RecordValue calls.
//
// InstanceID identifies the recorder a histogram belongs to;
// recorder.IntervalRecorder assigns it from a process-wide sequence.
type ConcurrentHistogram struct {
	geometry

	counts []int64

	// seen gates the first bitmap.Set call for each geometric bucket,
	// since bitmap.B64.Set adds rather than ORs in its bit and would
	// otherwise double-count a bucket touched by two writers. One bit
	// per bucket (at most 64, per geometry's own bucketCount<=63
	// check) rather than one bit per 64-slot counts[] chunk, so the
	// bitmap's capacity never depends on the resolution/range chosen.
	seen   []int32
	active bitmap.B64

	totalCount      int64
	maxValue        int64
	minNonZeroValue int64

	startTimeStampMsec int64
	endTimeStampMsec   int64

	InstanceID int64
}

// NewConcurrent constructs a ConcurrentHistogram covering
// [0, highestTrackableValue] with lowestDiscernibleValue resolution and
// significantFigures decimal digits of precision.
func NewConcurrent(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int) (*ConcurrentHistogram, error) {
	g, err := newGeometry(lowestDiscernibleValue, highestTrackableValue, significantFigures)
	if err != nil {
		return nil, err
	}
	// geometry.newGeometry already rejects configurations needing more
	// than 63 buckets, so bucketCount+1 always fits within the 64 bits
	// of active.
	h := &ConcurrentHistogram{geometry: g}
	h.counts = make([]int64, g.countsLen)
	h.seen = make([]int32, g.bucketCount+1)
	h.Reset()
	return h, nil
}

// Reset zeroes all counters. It is not safe to call concurrently with
// RecordValue; callers synchronize this through a phaser flip, exactly
// as recorder.IntervalRecorder does when swapping active histograms.
func (h *ConcurrentHistogram) Reset() {
	for i := range h.counts {
		atomic.StoreInt64(&h.counts[i], 0)
	}
	for i := range h.seen {
		atomic.StoreInt32(&h.seen[i], 0)
	}
	h.active = bitmap.B64{}
	atomic.StoreInt64(&h.totalCount, 0)
	atomic.StoreInt64(&h.maxValue, 0)
	atomic.StoreInt64(&h.minNonZeroValue, math.MaxInt64)
	h.startTimeStampMsec = 0
	h.endTimeStampMsec = 0
}

// RecordValue records a single occurrence of v. It never blocks.
func (h *ConcurrentHistogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v. n must be >= 0. It
// never blocks.
func (h *ConcurrentHistogram) RecordValueWithCount(v, n int64) error {
	if n < 0 {
		return Validation.New("count must be >= 0, got %d", n)
	}
	idx := h.countsIndexFor(v)
	if idx < 0 {
		return OutOfRange.New("value %d exceeds highest trackable value %d", v, h.highestTrackableValue)
	}

	atomic.AddInt64(&h.counts[idx], n)
	bucket := h.getBucketIndex(v)
	if atomic.CompareAndSwapInt32(&h.seen[bucket], 0, 1) {
		h.active.Set(uint(bucket))
	}

	atomic.AddInt64(&h.totalCount, n)
	for {
		old := atomic.LoadInt64(&h.maxValue)
		if v <= old || atomic.CompareAndSwapInt64(&h.maxValue, old, v) {
			break
		}
	}
	if v > 0 {
		for {
			old := atomic.LoadInt64(&h.minNonZeroValue)
			if v >= old || atomic.CompareAndSwapInt64(&h.minNonZeroValue, old, v) {
				break
			}
		}
	}
	return nil
}

// RecordValueWithExpectedInterval records v and, if expectedInterval is
// positive and smaller than v, synthesizes the phantom samples implied
// by a stalled caller having missed recording at that pacing interval.
func (h *ConcurrentHistogram) RecordValueWithExpectedInterval(v, expectedInterval int64) error {
	if err := h.RecordValue(v); err != nil {
		return err
	}
	if expectedInterval <= 0 || v <= expectedInterval {
		return nil
	}
	for missing := v - expectedInterval; missing >= expectedInterval; missing -= expectedInterval {
		if err := h.RecordValue(missing); err != nil {
			return err
		}
	}
	return nil
}

// groups iterates the occupied geometric buckets in ascending order,
// skipping buckets no writer has touched since the last Reset.
func (h *ConcurrentHistogram) groups(fn func(group uint)) {
	b := h.active
	for {
		group, ok := b.Next()
		if !ok {
			return
		}
		fn(group)
	}
}

// CountAtValue returns the count recorded in the bucket containing v.
func (h *ConcurrentHistogram) CountAtValue(v int64) int64 {
	idx := h.countsIndexFor(v)
	if idx < 0 {
		return 0
	}
	return atomic.LoadInt64(&h.counts[idx])
}

// CountBetweenValues returns the sum of counts recorded at values in
// [lo, hi].
func (h *ConcurrentHistogram) CountBetweenValues(lo, hi int64) int64 {
	var sum int64
	h.eachNonZero(func(idx int32, count int64) {
		v := h.valueFromIndex(idx)
		if v >= lo && v <= hi {
			sum += count
		}
	})
	return sum
}

// TotalCount returns the number of values recorded.
func (h *ConcurrentHistogram) TotalCount() int64 { return atomic.LoadInt64(&h.totalCount) }

// Min returns the approximate minimum recorded value, or 0 if empty.
func (h *ConcurrentHistogram) Min() int64 {
	if atomic.LoadInt64(&h.totalCount) == 0 {
		return 0
	}
	return h.lowestEquivalentValue(atomic.LoadInt64(&h.minNonZeroValue))
}

// Max returns the largest recorded value, or 0 if empty.
func (h *ConcurrentHistogram) Max() int64 {
	if atomic.LoadInt64(&h.totalCount) == 0 {
		return 0
	}
	return atomic.LoadInt64(&h.maxValue)
}

// Mean returns the approximate arithmetic mean of recorded values.
func (h *ConcurrentHistogram) Mean() float64 {
	total := atomic.LoadInt64(&h.totalCount)
	if total == 0 {
		return 0
	}
	var sum int64
	h.eachNonZero(func(idx int32, count int64) {
		sum += count * h.medianEquivalentValue(h.valueFromIndex(idx))
	})
	return float64(sum) / float64(total)
}

// StdDev returns the approximate standard deviation of recorded values.
func (h *ConcurrentHistogram) StdDev() float64 {
	total := atomic.LoadInt64(&h.totalCount)
	if total == 0 {
		return 0
	}
	mean := h.Mean()
	var sum float64
	h.eachNonZero(func(idx int32, count int64) {
		dev := float64(h.medianEquivalentValue(h.valueFromIndex(idx))) - mean
		sum += dev * dev * float64(count)
	})
	return math.Sqrt(sum / float64(total))
}

// eachNonZero walks every nonzero counts[] slot, using the active
// bitmap to skip whole geometric buckets no writer has touched.
func (h *ConcurrentHistogram) eachNonZero(fn func(idx int32, count int64)) {
	h.groups(func(group uint) {
		start, n := h.countsRangeForBucket(int32(group))
		for idx := start; idx < start+n; idx++ {
			count := atomic.LoadInt64(&h.counts[idx])
			if count != 0 {
				fn(idx, count)
			}
		}
	})
}

// ValueAtPercentile returns the largest value that (100-p) percent of
// recorded values are larger than or equivalent to. p must be in
// [0, 100].
func (h *ConcurrentHistogram) ValueAtPercentile(p float64) (int64, error) {
	if p < 0 || p > 100 {
		return 0, OutOfRange.New("percentile must be in [0, 100], got %v", p)
	}
	if p == 100 {
		return h.Max(), nil
	}
	total := atomic.LoadInt64(&h.totalCount)
	if total == 0 {
		return 0, nil
	}

	countAtPercentile := int64(p/100*float64(total) + 0.5)
	if countAtPercentile < 1 {
		countAtPercentile = 1
	}

	var countToIdx int64
	var result int64
	found := false
	for idx := int32(0); idx < int32(len(h.counts)); idx++ {
		count := atomic.LoadInt64(&h.counts[idx])
		if count == 0 {
			continue
		}
		countToIdx += count
		if countToIdx >= countAtPercentile {
			result = h.highestEquivalentValue(h.valueFromIndex(idx))
			found = true
			break
		}
	}
	if !found {
		return h.Max(), nil
	}
	return result, nil
}

// Each calls cb with (value, count) for every nonzero bucket, in
// ascending value order. Callers that need a consistent snapshot must
// ensure no writer is concurrently recording, exactly as Reset does.
func (h *ConcurrentHistogram) Each(cb func(value, count int64)) {
	for idx := int32(0); idx < int32(len(h.counts)); idx++ {
		count := atomic.LoadInt64(&h.counts[idx])
		if count == 0 {
			continue
		}
		cb(h.valueFromIndex(idx), count)
	}
}

// Percentiles calls cb with (value, cumulativeCount, totalCount) for
// every nonzero bucket, in ascending value order.
func (h *ConcurrentHistogram) Percentiles(cb func(value, count, total int64)) {
	total := atomic.LoadInt64(&h.totalCount)
	var cum int64
	for idx := int32(0); idx < int32(len(h.counts)); idx++ {
		count := atomic.LoadInt64(&h.counts[idx])
		if count == 0 {
			continue
		}
		cum += count
		cb(h.highestEquivalentValue(h.valueFromIndex(idx)), cum, total)
	}
}

// ValidateQuiesced panics via stateCorrupted if the total count does
// not agree with the sum of per-bucket counts. Callers must only call
// this once h has quiesced (no writer can still be recording into
// it) — recorder.IntervalRecorder calls it on the ex-active histogram
// right after a phaser flip confirms exactly that.
func (h *ConcurrentHistogram) ValidateQuiesced() { h.checkTotalInvariant() }

// checkTotalInvariant panics via stateCorrupted if the total count
// does not agree with the sum of per-bucket counts. Only meaningful
// once h has quiesced (no writer can still be recording into it);
// called from the snapshot paths that assume exactly that.
func (h *ConcurrentHistogram) checkTotalInvariant() {
	var sum int64
	for idx := int32(0); idx < int32(len(h.counts)); idx++ {
		sum += atomic.LoadInt64(&h.counts[idx])
	}
	if total := atomic.LoadInt64(&h.totalCount); sum != total {
		stateCorrupted(fmt.Sprintf("total count %d disagrees with bucket sum %d", total, sum))
	}
}

// CopyInto resets dst and copies every nonzero bucket of h into it by
// value. dst's geometry need not match h's, as long as it covers h's
// range; used by recorder.IntervalRecorder to hand snapshots back in a
// plain, non-concurrent Histogram.
func (h *ConcurrentHistogram) CopyInto(dst *Histogram) error {
	h.checkTotalInvariant()
	dst.Reset()
	for idx := int32(0); idx < int32(len(h.counts)); idx++ {
		count := atomic.LoadInt64(&h.counts[idx])
		if count == 0 {
			continue
		}
		v := h.valueFromIndex(idx)
		if err := dst.RecordValueWithCount(v, count); err != nil {
			return err
		}
	}
	dst.startTimeStampMsec = h.startTimeStampMsec
	dst.endTimeStampMsec = h.endTimeStampMsec
	return nil
}

// StartTimeStampMsec returns the recorder-maintained interval start
// timestamp.
func (h *ConcurrentHistogram) StartTimeStampMsec() int64 { return h.startTimeStampMsec }

// SetStartTimeStampMsec sets the recorder-maintained interval start
// timestamp. Callers must hold the phaser's reader lock or otherwise
// guarantee no writer is active.
func (h *ConcurrentHistogram) SetStartTimeStampMsec(v int64) { h.startTimeStampMsec = v }

// EndTimeStampMsec returns the recorder-maintained interval end
// timestamp.
func (h *ConcurrentHistogram) EndTimeStampMsec() int64 { return h.endTimeStampMsec }

// SetEndTimeStampMsec sets the recorder-maintained interval end
// timestamp. Callers must hold the phaser's reader lock or otherwise
// guarantee no writer is active.
func (h *ConcurrentHistogram) SetEndTimeStampMsec(v int64) { h.endTimeStampMsec = v }
