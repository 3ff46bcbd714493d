// Package floathist implements the HDR double histogram: a floating
// point value tracker built on top of an inthist integer histogram, by
// scaling recorded values through a power-of-two conversion ratio that
// shifts to keep the currently active range within a fixed
// highest-to-lowest value ratio. A shift rescales every already
// recorded bucket by fully re-iterating and re-recording it under the
// new ratio, trading an occasional O(n) rescale for a representation
// that never needs bit-shifted index translation.
package floathist

import (
	"math"

	"github.com/gitter-badger/HdrHistogram/inthist"
)

// DoubleHistogram is a non-concurrent HDR double histogram. It is not
// safe for concurrent use; see ConcurrentDoubleHistogram for that.
type DoubleHistogram struct {
	significantFigures        int
	highestToLowestValueRatio int64

	integerHist *inthist.Histogram

	currentLowestValueShift int
	maxValue                float64
	minNonZeroValue         float64
}

// New constructs a DoubleHistogram able to represent values whose
// ratio of largest to smallest magnitude never exceeds
// highestToLowestValueRatio, to significantFigures decimal digits of
// precision.
func New(highestToLowestValueRatio int64, significantFigures int) (*DoubleHistogram, error) {
	integerHist, err := inthist.New(1, highestToLowestValueRatio, significantFigures)
	if err != nil {
		return nil, err
	}
	h := &DoubleHistogram{
		significantFigures:        significantFigures,
		highestToLowestValueRatio: highestToLowestValueRatio,
		integerHist:               integerHist,
	}
	h.Reset()
	return h, nil
}

// Reset zeroes all counters and restores the histogram to its
// just-constructed state.
func (h *DoubleHistogram) Reset() {
	h.integerHist.Reset()
	h.currentLowestValueShift = 0
	h.maxValue = 0
	h.minNonZeroValue = 0
}

func pow2(shift int) float64 { return math.Ldexp(1, shift) }

// maxShiftSteps bounds the one-at-a-time shift search below at
// requiredShift; it comfortably covers the full float64 exponent
// range, so it is only ever exhausted by a genuinely unrepresentable
// [candidateMin, candidateMax] span.
const maxShiftSteps = 2200

// requiredShift walks the current shift up or down one step at a time
// until both candidateMin and candidateMax fit within the configured
// highest-to-lowest value ratio, or returns an OutOfRange error if no
// such shift exists. Starting from the current shift (rather than
// recomputing from scratch) keeps the common case a single step and
// makes the exact-ratio boundary (candidateMax/candidateMin == ratio)
// representable, since fit is judged the same way recording judges
// it: by the rounded integer value, not a continuous bound.
func (h *DoubleHistogram) requiredShift(candidateMin, candidateMax float64) (int, error) {
	ratio := float64(h.highestToLowestValueRatio)
	shift := h.currentLowestValueShift

	for i := 0; i < maxShiftSteps; i++ {
		minInt := math.Round(candidateMin * pow2(shift))
		maxInt := math.Round(candidateMax * pow2(shift))
		switch {
		case maxInt > ratio:
			shift--
		case minInt < 1:
			shift++
		default:
			return shift, nil
		}
	}

	return 0, OutOfRange.New(
		"value range [%v, %v] spans more than the configured highest-to-lowest ratio of %d",
		candidateMin, candidateMax, h.highestToLowestValueRatio)
}

// rescale re-records every bucket of the current integer histogram
// into a fresh one sized for newShift, then swaps it in.
func (h *DoubleHistogram) rescale(newShift int) error {
	fresh, err := inthist.New(1, h.highestToLowestValueRatio, h.significantFigures)
	if err != nil {
		return err
	}
	oldShift := h.currentLowestValueShift

	var rescaleErr error
	h.integerHist.Each(func(intVal, count int64) {
		if rescaleErr != nil {
			return
		}
		doubleVal := float64(intVal) / pow2(oldShift)
		newIntVal := int64(math.Round(doubleVal * pow2(newShift)))
		if newIntVal < 1 {
			newIntVal = 1
		}
		if err := fresh.RecordValueWithCount(newIntVal, count); err != nil {
			rescaleErr = err
		}
	})
	if rescaleErr != nil {
		return rescaleErr
	}

	fresh.SetStartTimeStampMsec(h.integerHist.StartTimeStampMsec())
	fresh.SetEndTimeStampMsec(h.integerHist.EndTimeStampMsec())
	h.integerHist = fresh
	h.currentLowestValueShift = newShift
	return nil
}

// RecordValue records a single occurrence of v. v must be >= 0,
// finite, and not NaN.
func (h *DoubleHistogram) RecordValue(v float64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (h *DoubleHistogram) RecordValueWithCount(v float64, n int64) error {
	if n < 0 {
		return Validation.New("count must be >= 0, got %d", n)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Validation.New("value must be finite and >= 0, got %v", v)
	}
	if v == 0 {
		return h.integerHist.RecordValueWithCount(0, n)
	}

	candidateMin, candidateMax := v, v
	if h.minNonZeroValue > 0 && h.minNonZeroValue < candidateMin {
		candidateMin = h.minNonZeroValue
	}
	if h.maxValue > candidateMax {
		candidateMax = h.maxValue
	}

	shift, err := h.requiredShift(candidateMin, candidateMax)
	if err != nil {
		return err
	}
	if shift != h.currentLowestValueShift {
		if err := h.rescale(shift); err != nil {
			return err
		}
	}

	integerValue := int64(math.Round(v * pow2(h.currentLowestValueShift)))
	if integerValue < 1 {
		integerValue = 1
	}
	if err := h.integerHist.RecordValueWithCount(integerValue, n); err != nil {
		return err
	}

	if v > h.maxValue {
		h.maxValue = v
	}
	if h.minNonZeroValue == 0 || v < h.minNonZeroValue {
		h.minNonZeroValue = v
	}
	return nil
}

// RecordValueWithExpectedInterval records v and, if expectedInterval is
// positive and smaller than v, synthesizes the phantom samples implied
// by a stalled caller having missed recording at that pacing interval.
func (h *DoubleHistogram) RecordValueWithExpectedInterval(v, expectedInterval float64) error {
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

func (h *DoubleHistogram) toDouble(intVal int64) float64 {
	return float64(intVal) / pow2(h.currentLowestValueShift)
}

func (h *DoubleHistogram) toInteger(v float64) int64 {
	return int64(math.Round(v * pow2(h.currentLowestValueShift)))
}

// TotalCount returns the number of values recorded.
func (h *DoubleHistogram) TotalCount() int64 { return h.integerHist.TotalCount() }

// CountBetweenValues returns the sum of counts recorded at values in
// [lo, hi], under the currently active conversion shift.
func (h *DoubleHistogram) CountBetweenValues(lo, hi float64) int64 {
	return h.integerHist.CountBetweenValues(h.toInteger(lo), h.toInteger(hi))
}

// Min returns the approximate minimum recorded value, or 0 if empty.
func (h *DoubleHistogram) Min() float64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return h.toDouble(h.integerHist.Min())
}

// Max returns the approximate maximum recorded value, or 0 if empty.
func (h *DoubleHistogram) Max() float64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return h.toDouble(h.integerHist.Max())
}

// Mean returns the approximate arithmetic mean of recorded values.
func (h *DoubleHistogram) Mean() float64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return h.integerHist.Mean() / pow2(h.currentLowestValueShift)
}

// StdDev returns the approximate standard deviation of recorded values.
func (h *DoubleHistogram) StdDev() float64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return h.integerHist.StdDev() / pow2(h.currentLowestValueShift)
}

// ValueAtPercentile returns the largest value that (100-p) percent of
// recorded values are larger than or equivalent to. p must be in
// [0, 100].
func (h *DoubleHistogram) ValueAtPercentile(p float64) (float64, error) {
	iv, err := h.integerHist.ValueAtPercentile(p)
	if err != nil {
		return 0, err
	}
	return h.toDouble(iv), nil
}

// Add adds every occurrence recorded in other to the receiver.
func (h *DoubleHistogram) Add(other *DoubleHistogram) error {
	var addErr error
	other.integerHist.Each(func(intVal, count int64) {
		if addErr != nil {
			return
		}
		addErr = h.RecordValueWithCount(other.toDouble(intVal), count)
	})
	return addErr
}

// Percentiles calls cb with (value, cumulativeCount, totalCount) for
// every nonzero bucket, in ascending value order.
func (h *DoubleHistogram) Percentiles(cb func(value float64, count, total int64)) {
	h.integerHist.Percentiles(func(intVal, count, total int64) {
		cb(h.toDouble(intVal), count, total)
	})
}

// StartTimeStampMsec returns the recorder-maintained interval start
// timestamp.
func (h *DoubleHistogram) StartTimeStampMsec() int64 { return h.integerHist.StartTimeStampMsec() }

// SetStartTimeStampMsec sets the recorder-maintained interval start
// timestamp.
func (h *DoubleHistogram) SetStartTimeStampMsec(v int64) { h.integerHist.SetStartTimeStampMsec(v) }

// EndTimeStampMsec returns the recorder-maintained interval end
// timestamp.
func (h *DoubleHistogram) EndTimeStampMsec() int64 { return h.integerHist.EndTimeStampMsec() }

// SetEndTimeStampMsec sets the recorder-maintained interval end
// timestamp.
func (h *DoubleHistogram) SetEndTimeStampMsec(v int64) { h.integerHist.SetEndTimeStampMsec(v) }
