package hdrhistogram

import (
	"sync/atomic"
	"unsafe"

	"github.com/gitter-badger/HdrHistogram/internal/lfht"
	"github.com/gitter-badger/HdrHistogram/recorder"
)

// defaultSignificantDigits is the precision used by every State's
// recorder. States are created lazily by name and callers have no
// opportunity to pick their own geometry, so this picks a figure
// generous enough for both latency and size metrics.
const defaultSignificantDigits = 3

func newState() unsafe.Pointer {
	rec, err := recorder.NewIntervalRecorder(defaultSignificantDigits)
	if err != nil {
		// NewIntervalRecorder uses a fixed, validated ceiling; this
		// can only fail if that ceiling's own geometry is broken.
		panic("hdrhistogram: default recorder geometry is invalid: " + err.Error())
	}
	return unsafe.Pointer(&State{rec: rec})
}

func newCounter() unsafe.Pointer { return unsafe.Pointer(new(int64)) }

// State keeps track of all of the timer information for calls under
// some name: an in-flight call counter, an interval recorder of call
// durations, and a tree of error counters keyed by an arbitrary
// "error kind" string.
type State struct {
	current int64
	errors  lfht.Table
	rec     *recorder.IntervalRecorder
}

// states maps names to State pointers.
var states lfht.Table

// GetState returns the current state for some name, allocating a new one if necessary.
func GetState(name string) *State { return (*State)(states.Upsert(name, newState)) }

// LookupState returns the current state for some name, returning nil if none exists.
func LookupState(name string) *State { return (*State)(states.Lookup(name)) }

// start informs the state that a task is starting.
func (s *State) start() { atomic.AddInt64(&s.current, 1) }

// done informs the State that a task has completed in the given
// amount of nanoseconds.
func (s *State) done(v int64, kind string) {
	atomic.AddInt64(&s.current, -1)
	_ = s.rec.RecordValue(v)

	if kind != "" {
		counter := (*int64)(s.errors.Upsert(kind, newCounter))
		atomic.AddInt64(counter, 1)
	}
}

// Recorder returns the interval recorder backing the state. Callers
// that want an exact "since last read" view call GetIntervalHistogram
// on it directly.
func (s *State) Recorder() *recorder.IntervalRecorder { return s.rec }

// Errors returns a tree of error counters. Be sure to use atomic.LoadInt64 on the results.
func (s *State) Errors() *lfht.Table { return &s.errors }

// Current returns the number of active calls.
func (s *State) Current() int64 { return atomic.LoadInt64(&s.current) }

// Total returns the number of completed calls observed by the live
// (active) histogram. This is a cheap, approximate, non-blocking
// count; it does not reflect calls already carried off by a snapshot.
func (s *State) Total() int64 { return s.rec.Current().TotalCount() }

// Quantile returns an estimation of the qth quantile in [0, 1],
// computed against the live histogram.
func (s *State) Quantile(q float64) int64 {
	v, _ := s.rec.Current().ValueAtPercentile(q * 100)
	return v
}

// Sum returns an estimation of the sum of completed call durations,
// computed against the live histogram.
func (s *State) Sum() float64 { return s.rec.Current().Mean() * float64(s.Total()) }

// Average returns an estimation of the sum and average, computed
// against the live histogram.
func (s *State) Average() (float64, float64) {
	mean := s.rec.Current().Mean()
	return mean * float64(s.Total()), mean
}

// Variance returns an estimation of the sum, average and variance,
// computed against the live histogram.
func (s *State) Variance() (float64, float64, float64) {
	h := s.rec.Current()
	mean := h.Mean()
	sd := h.StdDev()
	return mean * float64(s.Total()), mean, sd * sd
}
