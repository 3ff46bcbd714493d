package floathist

import (
	"math"
	"sync"

	"github.com/gitter-badger/HdrHistogram/inthist"
)

// ConcurrentDoubleHistogram is an HDR double histogram safe for
// concurrent use. Unlike ConcurrentHistogram, recording is not
// wait-free: a rescale mutates the shared integer histogram and its
// conversion ratio in place, so every RecordValue call serializes on a
// dedicated mutex distinct from any phaser guarding this histogram's
// own active/inactive swap.
type ConcurrentDoubleHistogram struct {
	mu sync.Mutex

	significantFigures        int
	highestToLowestValueRatio int64

	integerHist *inthist.ConcurrentHistogram

	currentLowestValueShift int
	maxValue                float64
	minNonZeroValue         float64

	InstanceID int64
}

// NewConcurrent constructs a ConcurrentDoubleHistogram able to
// represent values whose ratio of largest to smallest magnitude never
// exceeds highestToLowestValueRatio, to significantFigures decimal
// digits of precision.
func NewConcurrent(highestToLowestValueRatio int64, significantFigures int) (*ConcurrentDoubleHistogram, error) {
	integerHist, err := inthist.NewConcurrent(1, highestToLowestValueRatio, significantFigures)
	if err != nil {
		return nil, err
	}
	h := &ConcurrentDoubleHistogram{
		significantFigures:        significantFigures,
		highestToLowestValueRatio: highestToLowestValueRatio,
		integerHist:               integerHist,
	}
	return h, nil
}

// Reset zeroes all counters. Callers synchronize this against
// RecordValue the same way they would for ConcurrentHistogram.Reset.
func (h *ConcurrentDoubleHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.integerHist.Reset()
	h.currentLowestValueShift = 0
	h.maxValue = 0
	h.minNonZeroValue = 0
}

// requiredShift walks the current shift up or down one step at a time
// until both candidateMin and candidateMax fit within the configured
// highest-to-lowest value ratio; see the non-concurrent
// DoubleHistogram.requiredShift for why stepping from the current
// shift (rather than recomputing from scratch) is required for the
// exact-ratio boundary to be representable.
func (h *ConcurrentDoubleHistogram) requiredShift(candidateMin, candidateMax float64) (int, error) {
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

func (h *ConcurrentDoubleHistogram) rescale(newShift int) error {
	fresh, err := inthist.NewConcurrent(1, h.highestToLowestValueRatio, h.significantFigures)
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

// RecordValue records a single occurrence of v.
func (h *ConcurrentDoubleHistogram) RecordValue(v float64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (h *ConcurrentDoubleHistogram) RecordValueWithCount(v float64, n int64) error {
	if n < 0 {
		return Validation.New("count must be >= 0, got %d", n)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Validation.New("value must be finite and >= 0, got %v", v)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

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
func (h *ConcurrentDoubleHistogram) RecordValueWithExpectedInterval(v, expectedInterval float64) error {
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

func (h *ConcurrentDoubleHistogram) toDouble(intVal int64) float64 {
	return float64(intVal) / pow2(h.currentLowestValueShift)
}

func (h *ConcurrentDoubleHistogram) toInteger(v float64) int64 {
	return int64(math.Round(v * pow2(h.currentLowestValueShift)))
}

// TotalCount returns the number of values recorded.
func (h *ConcurrentDoubleHistogram) TotalCount() int64 { return h.integerHist.TotalCount() }

// CountBetweenValues returns the sum of counts recorded at values in
// [lo, hi], under the currently active conversion shift. Locked
// because the shift used to convert lo/hi must match the shift the
// matching counts were recorded under.
func (h *ConcurrentDoubleHistogram) CountBetweenValues(lo, hi float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.integerHist.CountBetweenValues(h.toInteger(lo), h.toInteger(hi))
}

// Min returns the approximate minimum recorded value, or 0 if empty.
func (h *ConcurrentDoubleHistogram) Min() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.integerHist.TotalCount() == 0 {
		return 0
	}
	return h.toDouble(h.integerHist.Min())
}

// Max returns the approximate maximum recorded value, or 0 if empty.
func (h *ConcurrentDoubleHistogram) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.integerHist.TotalCount() == 0 {
		return 0
	}
	return h.toDouble(h.integerHist.Max())
}

// Mean returns the approximate arithmetic mean of recorded values.
func (h *ConcurrentDoubleHistogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.integerHist.TotalCount() == 0 {
		return 0
	}
	return h.integerHist.Mean() / pow2(h.currentLowestValueShift)
}

// ValueAtPercentile returns the largest value that (100-p) percent of
// recorded values are larger than or equivalent to. p must be in
// [0, 100].
func (h *ConcurrentDoubleHistogram) ValueAtPercentile(p float64) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	iv, err := h.integerHist.ValueAtPercentile(p)
	if err != nil {
		return 0, err
	}
	return h.toDouble(iv), nil
}

// Percentiles calls cb with (value, cumulativeCount, totalCount) for
// every nonzero bucket, in ascending value order.
func (h *ConcurrentDoubleHistogram) Percentiles(cb func(value float64, count, total int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.integerHist.Percentiles(func(intVal, count, total int64) {
		cb(h.toDouble(intVal), count, total)
	})
}

// ValidateQuiesced panics via the underlying integer histogram's
// stateCorrupted path if its total count disagrees with its bucket
// sum. Callers must only call this once h has quiesced.
func (h *ConcurrentDoubleHistogram) ValidateQuiesced() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.integerHist.ValidateQuiesced()
}

// CopyInto resets dst and copies every nonzero bucket of h into it.
func (h *ConcurrentDoubleHistogram) CopyInto(dst *DoubleHistogram) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.integerHist.ValidateQuiesced()
	dst.Reset()
	var err error
	h.integerHist.Each(func(intVal, count int64) {
		if err != nil {
			return
		}
		err = dst.RecordValueWithCount(h.toDouble(intVal), count)
	})
	if err != nil {
		return err
	}
	dst.SetStartTimeStampMsec(h.integerHist.StartTimeStampMsec())
	dst.SetEndTimeStampMsec(h.integerHist.EndTimeStampMsec())
	return nil
}

// StartTimeStampMsec returns the recorder-maintained interval start
// timestamp.
func (h *ConcurrentDoubleHistogram) StartTimeStampMsec() int64 {
	return h.integerHist.StartTimeStampMsec()
}

// SetStartTimeStampMsec sets the recorder-maintained interval start
// timestamp. Callers must hold the phaser's reader lock or otherwise
// guarantee no writer is active.
func (h *ConcurrentDoubleHistogram) SetStartTimeStampMsec(v int64) {
	h.integerHist.SetStartTimeStampMsec(v)
}

// EndTimeStampMsec returns the recorder-maintained interval end
// timestamp.
func (h *ConcurrentDoubleHistogram) EndTimeStampMsec() int64 {
	return h.integerHist.EndTimeStampMsec()
}

// SetEndTimeStampMsec sets the recorder-maintained interval end
// timestamp. Callers must hold the phaser's reader lock or otherwise
// guarantee no writer is active.
func (h *ConcurrentDoubleHistogram) SetEndTimeStampMsec(v int64) {
	h.integerHist.SetEndTimeStampMsec(v)
}
