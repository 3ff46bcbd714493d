// Package recorder implements the interval recorder: a wait-free
// writer path over a double-buffered concurrent histogram, and a
// reader path that swaps the active/inactive buffers under a phaser to
// hand back a consistent "since the last snapshot" view without ever
// blocking a writer.
package recorder

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/zeebo/errs"

	"github.com/gitter-badger/HdrHistogram/inthist"
	"github.com/gitter-badger/HdrHistogram/phaser"
)

// Error classes returned by this package.
var (
	Validation = errs.Class("validation")
)

// DefaultAutoResizeHighestTrackableValue is the ceiling used by
// NewIntervalRecorder, which does not expose an explicit range. The
// library does not implement dynamic auto-resize; values past this
// ceiling fail with an OutOfRange error from the underlying histogram
// rather than growing it.
const DefaultAutoResizeHighestTrackableValue = int64(1) << 52

var instanceIDSequencer int64

func nextInstanceID() int64 {
	return atomic.AddInt64(&instanceIDSequencer, 1)
}

// flipSleepInterval is how long FlipPhase sleeps between checks that
// pre-flip writers have drained.
const flipSleepInterval = 500 * time.Microsecond

// IntervalRecorder lets any number of goroutines call RecordValue
// concurrently without blocking each other, while a single reader
// periodically calls GetIntervalHistogram to pull a stable snapshot of
// everything recorded since the previous call.
type IntervalRecorder struct {
	p *phaser.Phaser

	lowestDiscernibleValue int64
	highestTrackableValue  int64
	significantDigits      int

	instanceID int64

	active   unsafe.Pointer
	inactive unsafe.Pointer
}

func (r *IntervalRecorder) loadActive() *inthist.ConcurrentHistogram {
	return (*inthist.ConcurrentHistogram)(atomic.LoadPointer(&r.active))
}

func (r *IntervalRecorder) storeActive(h *inthist.ConcurrentHistogram) {
	atomic.StorePointer(&r.active, unsafe.Pointer(h))
}

func (r *IntervalRecorder) storeInactive(h *inthist.ConcurrentHistogram) {
	atomic.StorePointer(&r.inactive, unsafe.Pointer(h))
}

func nowMsec() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// NewIntervalRecorder constructs an auto-resizing integer recorder.
// This library does not implement dynamic auto-resize; it instead
// fixes the range at a ceiling generous enough for any realistic
// duration, latency, or size metric.
func NewIntervalRecorder(significantDigits int) (*IntervalRecorder, error) {
	return NewIntervalRecorderWithHighestTrackableValue(DefaultAutoResizeHighestTrackableValue, significantDigits)
}

// NewIntervalRecorderWithHighestTrackableValue constructs a recorder
// covering [1, highestTrackableValue].
func NewIntervalRecorderWithHighestTrackableValue(highestTrackableValue int64, significantDigits int) (*IntervalRecorder, error) {
	return NewIntervalRecorderFull(1, highestTrackableValue, significantDigits)
}

// NewIntervalRecorderFull constructs a recorder covering
// [lowestDiscernibleValue, highestTrackableValue].
func NewIntervalRecorderFull(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int) (*IntervalRecorder, error) {
	id := nextInstanceID()

	active, err := newConcurrentFor(lowestDiscernibleValue, highestTrackableValue, significantDigits, id)
	if err != nil {
		return nil, err
	}
	inactive, err := newConcurrentFor(lowestDiscernibleValue, highestTrackableValue, significantDigits, id)
	if err != nil {
		return nil, err
	}

	r := &IntervalRecorder{
		p: phaser.New(),

		lowestDiscernibleValue: lowestDiscernibleValue,
		highestTrackableValue:  highestTrackableValue,
		significantDigits:      significantDigits,

		instanceID: id,
	}
	r.storeActive(active)
	r.storeInactive(inactive)
	return r, nil
}

func newConcurrentFor(lowest, highest int64, digits int, id int64) (*inthist.ConcurrentHistogram, error) {
	h, err := inthist.NewConcurrent(lowest, highest, digits)
	if err != nil {
		return nil, err
	}
	h.InstanceID = id
	return h, nil
}

// RecordValue records a single occurrence of v. It never blocks.
func (r *IntervalRecorder) RecordValue(v int64) error {
	return r.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v. It never blocks.
func (r *IntervalRecorder) RecordValueWithCount(v, n int64) (err error) {
	t := r.p.WriterCriticalSectionEnter()
	defer r.p.WriterCriticalSectionExit(t)

	err = r.loadActive().RecordValueWithCount(v, n)
	return err
}

// RecordValueWithExpectedInterval records v, performing coordinated
// omission correction against expectedInterval. It never blocks.
func (r *IntervalRecorder) RecordValueWithExpectedInterval(v, expectedInterval int64) (err error) {
	t := r.p.WriterCriticalSectionEnter()
	defer r.p.WriterCriticalSectionExit(t)

	err = r.loadActive().RecordValueWithExpectedInterval(v, expectedInterval)
	return err
}

// GetIntervalHistogram returns a histogram containing every value
// recorded since the previous call to GetIntervalHistogram (or since
// construction, for the first call). If recycle is non-nil, it must
// have been returned by an earlier call to this same recorder; it is
// reused as the new active buffer instead of allocating one.
func (r *IntervalRecorder) GetIntervalHistogram(recycle *inthist.ConcurrentHistogram) (*inthist.ConcurrentHistogram, error) {
	if recycle == nil {
		fresh, err := newConcurrentFor(r.lowestDiscernibleValue, r.highestTrackableValue, r.significantDigits, r.instanceID)
		if err != nil {
			return nil, err
		}
		recycle = fresh
	} else if recycle.InstanceID != r.instanceID {
		return nil, Validation.New("recycle buffer belongs to a different recorder instance")
	}

	r.p.ReaderLock()
	defer r.p.ReaderUnlock()

	recycle.Reset()

	oldActive := r.loadActive()
	r.storeActive(recycle)
	r.storeInactive(oldActive)

	now := nowMsec()
	r.loadActive().SetStartTimeStampMsec(now)
	oldActive.SetEndTimeStampMsec(now)

	r.p.FlipPhase(flipSleepInterval)

	oldActive.ValidateQuiesced()
	return oldActive, nil
}

// GetIntervalHistogramInto performs the same snapshot cycle as
// GetIntervalHistogram, then resets target and adds the snapshot into
// it, so callers that always want their own buffer never have to
// manage recycling.
func (r *IntervalRecorder) GetIntervalHistogramInto(target *inthist.Histogram) error {
	snapshot, err := r.GetIntervalHistogram(nil)
	if err != nil {
		return err
	}
	target.Reset()
	return snapshot.CopyInto(target)
}

// Reset clears both the active and inactive buffers by performing two
// snapshot cycles back-to-back.
func (r *IntervalRecorder) Reset() error {
	if _, err := r.GetIntervalHistogram(nil); err != nil {
		return err
	}
	_, err := r.GetIntervalHistogram(nil)
	return err
}

// Current returns the live (active) histogram, for cheap, approximate,
// non-blocking observability. It is not the
// "since last read" value GetIntervalHistogram provides.
func (r *IntervalRecorder) Current() *inthist.ConcurrentHistogram {
	return r.loadActive()
}

// InstanceID returns the recorder's process-wide monotonic identifier.
func (r *IntervalRecorder) InstanceID() int64 { return r.instanceID }
