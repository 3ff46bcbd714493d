// Package inthist implements the HDR (high dynamic range) integer
// histogram: a fixed-memory, logarithmic-bucket counter array giving
// bounded relative error across many orders of magnitude, plus a
// concurrent variant exposing a wait-free atomic record path for use
// under a writer/reader phaser.
package inthist

import (
	"math"
)

// Histogram is a non-concurrent HDR histogram. Per this package's
// non-goals, it is not safe for concurrent use; see ConcurrentHistogram
// for that.
type Histogram struct {
	geometry

	counts []int64

	totalCount      int64
	maxValue        int64
	minNonZeroValue int64

	startTimeStampMsec int64
	endTimeStampMsec   int64
}

// New constructs a Histogram covering [0, highestTrackableValue] with
// lowestDiscernibleValue resolution and significantFigures decimal
// digits of precision.
func New(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int) (*Histogram, error) {
	g, err := newGeometry(lowestDiscernibleValue, highestTrackableValue, significantFigures)
	if err != nil {
		return nil, err
	}
	h := &Histogram{geometry: g}
	h.Reset()
	return h, nil
}

// Reset zeroes all counters and restores the histogram to its
// just-constructed state.
func (h *Histogram) Reset() {
	if h.counts == nil {
		h.counts = make([]int64, h.countsLen)
	} else {
		for i := range h.counts {
			h.counts[i] = 0
		}
	}
	h.totalCount = 0
	h.maxValue = 0
	h.minNonZeroValue = math.MaxInt64
	h.startTimeStampMsec = 0
	h.endTimeStampMsec = 0
}

// RecordValue records a single occurrence of v.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v. n must be >= 0.
func (h *Histogram) RecordValueWithCount(v, n int64) error {
	if n < 0 {
		return Validation.New("count must be >= 0, got %d", n)
	}
	idx := h.countsIndexFor(v)
	if idx < 0 {
		return OutOfRange.New("value %d exceeds highest trackable value %d", v, h.highestTrackableValue)
	}
	h.counts[idx] += n
	h.totalCount += n
	if v > h.maxValue {
		h.maxValue = v
	}
	if v > 0 && v < h.minNonZeroValue {
		h.minNonZeroValue = v
	}
	return nil
}

// RecordValueWithExpectedInterval records v and, if expectedInterval is
// positive and smaller than v, synthesizes the phantom samples implied
// by a stalled caller having missed recording at that pacing interval
// (the coordinated-omission correction).
func (h *Histogram) RecordValueWithExpectedInterval(v, expectedInterval int64) error {
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

// Add adds every nonzero bucket of other to the receiver, matched up by
// value rather than by index (the two histograms' geometries need not
// be identical). Fails OutOfRange if other has a nonzero bucket whose
// value exceeds the receiver's highestTrackableValue.
func (h *Histogram) Add(other *Histogram) error {
	for idx, count := range other.counts {
		if count == 0 {
			continue
		}
		v := other.valueFromIndex(int32(idx))
		if err := h.RecordValueWithCount(v, count); err != nil {
			return err
		}
	}
	return nil
}

// Subtract removes every nonzero bucket of other from the receiver,
// matched up by value. Fails Underflow if any resulting count would go
// negative.
func (h *Histogram) Subtract(other *Histogram) error {
	for idx, count := range other.counts {
		if count == 0 {
			continue
		}
		v := other.valueFromIndex(int32(idx))
		myIdx := h.countsIndexFor(v)
		if myIdx < 0 {
			return OutOfRange.New("value %d exceeds highest trackable value %d", v, h.highestTrackableValue)
		}
		if h.counts[myIdx] < count {
			return Underflow.New("subtracting %d from bucket with count %d at value %d", count, h.counts[myIdx], v)
		}
		h.counts[myIdx] -= count
		h.totalCount -= count
	}
	return nil
}

// CountAtValue returns the count recorded in the bucket containing v.
func (h *Histogram) CountAtValue(v int64) int64 {
	idx := h.countsIndexFor(v)
	if idx < 0 {
		return 0
	}
	return h.counts[idx]
}

// TotalCount returns the number of values recorded.
func (h *Histogram) TotalCount() int64 { return h.totalCount }

// Min returns the approximate minimum recorded value, or 0 if empty.
func (h *Histogram) Min() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.lowestEquivalentValue(h.minNonZeroValue)
}

// Max returns the largest recorded value, or 0 if empty.
func (h *Histogram) Max() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.maxValue
}

// Mean returns the approximate arithmetic mean of recorded values.
func (h *Histogram) Mean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total int64
	for idx, count := range h.counts {
		if count == 0 {
			continue
		}
		total += count * h.medianEquivalentValue(h.valueFromIndex(int32(idx)))
	}
	return float64(total) / float64(h.totalCount)
}

// StdDev returns the approximate standard deviation of recorded values.
func (h *Histogram) StdDev() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.Mean()
	var total float64
	for idx, count := range h.counts {
		if count == 0 {
			continue
		}
		dev := float64(h.medianEquivalentValue(h.valueFromIndex(int32(idx)))) - mean
		total += dev * dev * float64(count)
	}
	return math.Sqrt(total / float64(h.totalCount))
}

// ValueAtPercentile returns the largest value that (100-p) percent of
// recorded values are larger than or equivalent to. p must be in
// [0, 100].
func (h *Histogram) ValueAtPercentile(p float64) (int64, error) {
	if p < 0 || p > 100 {
		return 0, OutOfRange.New("percentile must be in [0, 100], got %v", p)
	}
	if p == 100 {
		return h.Max(), nil
	}
	if h.totalCount == 0 {
		return 0, nil
	}

	countAtPercentile := int64(p/100*float64(h.totalCount) + 0.5)
	if countAtPercentile < 1 {
		countAtPercentile = 1
	}

	var countToIdx int64
	for idx, count := range h.counts {
		countToIdx += count
		if countToIdx >= countAtPercentile {
			return h.highestEquivalentValue(h.valueFromIndex(int32(idx))), nil
		}
	}
	return h.Max(), nil
}

// CountBetweenValues returns the sum of counts for buckets whose
// representative value lies in [lo, hi].
func (h *Histogram) CountBetweenValues(lo, hi int64) int64 {
	var sum int64
	for idx, count := range h.counts {
		if count == 0 {
			continue
		}
		v := h.valueFromIndex(int32(idx))
		if v >= lo && v <= hi {
			sum += count
		}
	}
	return sum
}

// StartTimeStampMsec returns the recorder-maintained interval start
// timestamp.
func (h *Histogram) StartTimeStampMsec() int64 { return h.startTimeStampMsec }

// SetStartTimeStampMsec sets the recorder-maintained interval start
// timestamp.
func (h *Histogram) SetStartTimeStampMsec(v int64) { h.startTimeStampMsec = v }

// EndTimeStampMsec returns the recorder-maintained interval end
// timestamp.
func (h *Histogram) EndTimeStampMsec() int64 { return h.endTimeStampMsec }

// SetEndTimeStampMsec sets the recorder-maintained interval end
// timestamp.
func (h *Histogram) SetEndTimeStampMsec(v int64) { h.endTimeStampMsec = v }

// Each calls cb with (value, count) for every nonzero bucket, in
// ascending value order. Unlike Percentiles, count is not cumulative;
// this is the iteration surface used to rescale and recombine
// histograms whose own buckets aren't otherwise visible outside the
// package.
func (h *Histogram) Each(cb func(value, count int64)) {
	for idx, count := range h.counts {
		if count == 0 {
			continue
		}
		cb(h.valueFromIndex(int32(idx)), count)
	}
}

// Percentiles calls cb with (value, cumulativeCount, totalCount) for
// every nonzero bucket, in ascending value order. It is the minimal
// iteration surface the exporters in this module need; richer
// percentile-distribution iterators are an external collaborator.
func (h *Histogram) Percentiles(cb func(value, count, total int64)) {
	var cum int64
	for idx, count := range h.counts {
		if count == 0 {
			continue
		}
		cum += count
		cb(h.highestEquivalentValue(h.valueFromIndex(int32(idx))), cum, h.totalCount)
	}
}
